package scripting

import (
	"fmt"
	"strings"

	"go-scan-sorter/internal/analyzer"
	apperrors "go-scan-sorter/internal/errors"

	"github.com/dop251/goja"
)

// RunPre runs pre-processing code with img bound to frame. Whatever img holds
// afterwards is returned; empty code returns frame unchanged.
func (l *Loader) RunPre(code string, frame *analyzer.Frame) (*analyzer.Frame, error) {
	if strings.TrimSpace(code) == "" {
		return frame, nil
	}
	prog, err := goja.Compile("pre_code", code, false)
	if err != nil {
		return nil, apperrors.NewTransformError("pre code does not compile", err)
	}

	vm := l.newRuntime()
	_ = vm.Set(imageVar, frame)
	if _, err := l.guard(vm, func() (goja.Value, error) { return vm.RunProgram(prog) }); err != nil {
		return nil, apperrors.NewTransformError("pre code failed", err)
	}

	v := vm.Get(imageVar)
	if v == nil {
		return nil, apperrors.NewTransformError(fmt.Sprintf("pre code removed %s", imageVar), nil)
	}
	out, ok := v.Export().(*analyzer.Frame)
	if !ok || out == nil {
		return nil, apperrors.NewTransformError(fmt.Sprintf("pre code left %s as %T", imageVar, v.Export()), nil)
	}
	return out, nil
}

// RunPost runs post-processing code with text bound to the raw OCR text.
// Whatever text holds afterwards, converted to a string, is returned.
func (l *Loader) RunPost(code, text string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return text, nil
	}
	prog, err := goja.Compile("post_code", code, false)
	if err != nil {
		return "", apperrors.NewTransformError("post code does not compile", err)
	}

	vm := l.newRuntime()
	_ = vm.Set(textToolkitName, l.str)
	_ = vm.Set(textVar, text)
	if _, err := l.guard(vm, func() (goja.Value, error) { return vm.RunProgram(prog) }); err != nil {
		return "", apperrors.NewTransformError("post code failed", err)
	}

	out := vm.Get(textVar)
	if out == nil || goja.IsUndefined(out) || goja.IsNull(out) {
		return "", apperrors.NewTransformError(fmt.Sprintf("post code cleared %s", textVar), nil)
	}
	return out.String(), nil
}
