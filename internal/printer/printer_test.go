package printer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
)

func TestPrinter_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	p.Successf("created %s", "a1")
	p.Infof("page %d of %d", 1, 3)
	p.Notify("problem submitting data")

	assert.Equal(t, "✔ created a1\n• page 1 of 3\n! problem submitting data\n", buf.String())
}

func TestPrinter_FatalError(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlain(&buf)

	p.FatalError(errors.New("boom"))
	assert.Equal(t, "╭ Error\n│ boom\n╵\n", buf.String())

	buf.Reset()
	p.FatalError(nil)
	assert.Empty(t, buf.String())
}

func TestPrinter_FatalError_FieldErrors(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlain(&buf)

	fieldErrs := criterio.NewFieldErrors("title", errors.New("is required"))
	p.FatalError(fmt.Errorf("invalid activity: %w", fieldErrs))

	out := buf.String()
	assert.Contains(t, out, "╭ Validation Error\n")
	assert.Contains(t, out, "│ invalid activity\n")
	assert.Contains(t, out, "│ ✘ title: is required\n")
}

func TestCtx(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	ctx := NewContext(context.Background(), p)
	assert.Same(t, p, Ctx(ctx))
	assert.NotNil(t, Ctx(context.Background()))
}
