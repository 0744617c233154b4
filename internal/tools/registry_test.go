package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(name string) Spec {
	return Spec{
		Name:        name,
		Description: "echo " + name,
		Handler: func(_ context.Context, args any) (string, error) {
			b, _ := json.Marshal(args)
			return string(b), nil
		},
	}
}

func names(specs []Spec) []string {
	out := make([]string, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Name)
	}
	return out
}

func TestRegistryListKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry(echo("zeta"), echo("alpha"))
	r.Register(echo("mid"))

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names(r.List()))
}

func TestRegistryReplaceKeepsPosition(t *testing.T) {
	r := NewRegistry(echo("a"), echo("b"), echo("c"))
	replacement := echo("b")
	replacement.Description = "new b"
	r.Register(replacement)

	specs := r.List()
	assert.Equal(t, []string{"a", "b", "c"}, names(specs))
	assert.Equal(t, "new b", specs[1].Description)
}

func TestRegistryDeclarations(t *testing.T) {
	r := NewRegistry(echo("a"), Spec{Name: "b", Parameters: map[string]any{"type": "object", "required": []string{"q"}}})

	decls := r.Declarations()
	require.Len(t, decls, 2)
	assert.Equal(t, "echo a", decls[0].Description)
	assert.Equal(t, "object", decls[0].Parameters["type"], "missing schema defaults to an empty object")
	assert.Equal(t, []string{"q"}, decls[1].Parameters["required"])
}

func TestInvokeParsesJSONArgs(t *testing.T) {
	r := NewRegistry(echo("e"))
	ctx := context.Background()

	assert.JSONEq(t, `{"q":"spf"}`, r.Invoke(ctx, "e", `{"q":"spf"}`))
	assert.JSONEq(t, `{"q":"spf"}`, r.Invoke(ctx, "e", []byte(`{"q":"spf"}`)))
	assert.JSONEq(t, `{"q":"spf"}`, r.Invoke(ctx, "e", json.RawMessage(`{"q":"spf"}`)))
	assert.JSONEq(t, `{"q":"spf"}`, r.Invoke(ctx, "e", map[string]any{"q": "spf"}))
	assert.JSONEq(t, `{}`, r.Invoke(ctx, "e", ""))
}

func TestInvokeFallsBackToRawString(t *testing.T) {
	var got any
	r := NewRegistry(Spec{Name: "raw", Handler: func(_ context.Context, args any) (string, error) {
		got = args
		return "ok", nil
	}})

	assert.Equal(t, "ok", r.Invoke(context.Background(), "raw", "vitamin c serum"))
	assert.Equal(t, "vitamin c serum", got)
}

func TestInvokeUnknownTool(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, `Tool "web_search" is not available.`, r.Invoke(context.Background(), "web_search", "{}"))
}

func TestInvokeHandlerError(t *testing.T) {
	r := NewRegistry(Spec{Name: "serper", Handler: func(context.Context, any) (string, error) {
		return "", errors.New("quota exceeded")
	}})

	out := r.Invoke(context.Background(), "serper", "{}")
	assert.Equal(t, `Tool "serper" failed: quota exceeded`, out)
}

func TestInvokeHandlerPanic(t *testing.T) {
	r := NewRegistry(Spec{Name: "boom", Handler: func(context.Context, any) (string, error) {
		panic("nil map")
	}})

	out := r.Invoke(context.Background(), "boom", "{}")
	assert.Contains(t, out, `"boom"`)
	assert.Contains(t, out, "nil map")
}

func TestStringArg(t *testing.T) {
	assert.Equal(t, "spf", StringArg(map[string]any{"q": " spf "}, "q"))
	assert.Equal(t, "30", StringArg(map[string]any{"max_price": float64(30)}, "max_price"))
	assert.Equal(t, "", StringArg(map[string]any{}, "q"))
	assert.Equal(t, "toner", StringArg("toner", "q"))
	assert.Equal(t, "", StringArg(42, "q"))
}
