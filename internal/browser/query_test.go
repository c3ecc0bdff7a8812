package browser

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestQueryString(t *testing.T) {
	q := CSS(".figure").Nth(1).With(Step{Kind: StepCSS, Selector: ".figcaption"})
	assert.Equal(t, "css=.figure >> nth=1 >> css=.figcaption", q.String())

	role := Query{{Kind: StepRole, Role: "button", Name: "Click for JS Alert"}}
	assert.Equal(t, `role=button[name="Click for JS Alert"]`, role.String())

	text := Query{{Kind: StepText, Name: "Click Here"}}
	assert.Equal(t, `text="Click Here"`, text.String())
}

func TestQueryNthOnEmpty(t *testing.T) {
	var q Query
	assert.Empty(t, q.Nth(3))
}

// Deriving a query never changes the query it was derived from.
func TestQueryDerivationIsPure(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 4).Draw(rt, "steps")
		base := Query{}
		for i := 0; i < n; i++ {
			base = base.With(Step{
				Kind:     StepCSS,
				Selector: rapid.StringMatching(`[a-z#.]{1,8}`).Draw(rt, "selector"),
			})
		}
		snapshot := append(Query(nil), base...)
		for i := range snapshot {
			if base[i].Nth != nil {
				v := *base[i].Nth
				snapshot[i].Nth = &v
			}
		}

		idx := rapid.IntRange(-3, 10).Draw(rt, "nth")
		derived := base.Nth(idx).With(Step{Kind: StepText, Name: "x"})

		if diff := cmp.Diff(snapshot, base); diff != "" {
			rt.Fatalf("base query mutated (-want +got):\n%s", diff)
		}
		if len(derived) != len(base)+1 {
			rt.Fatalf("derived query has %d steps, want %d", len(derived), len(base)+1)
		}
		if got := derived[len(base)-1].Nth; got == nil || *got != idx {
			rt.Fatalf("nth not applied to last step")
		}
	})
}

func TestExpressionEmbedsRequest(t *testing.T) {
	expr, err := Expression(ScriptRequest{Op: OpInspect, Query: CSS("#column-a")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(expr, "((function (req)"))
	assert.Contains(t, expr, `"op":"inspect"`)
	assert.Contains(t, expr, `"selector":"#column-a"`)
}

func TestToArgumentAndDecode(t *testing.T) {
	arg, err := ToArgument(ScriptRequest{Op: OpMark, Query: CSS("a").Nth(0), Name: MarkAttribute, Value: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "mark", arg["op"])
	assert.Equal(t, MarkAttribute, arg["name"])

	var st ElementState
	require.NoError(t, DecodeResult(map[string]any{
		"count": float64(2), "attached": true, "visible": true, "enabled": true, "checked": false, "text": "A",
	}, &st))
	assert.Equal(t, ElementState{Count: 2, Attached: true, Visible: true, Enabled: true, Text: "A"}, st)
	assert.True(t, st.Found())
}

func TestCombineContext(t *testing.T) {
	type key struct{}

	t.Run("inherits values and cancels with the secondary", func(t *testing.T) {
		primary := context.WithValue(context.Background(), key{}, "cdp")
		secondary, cancelSecondary := context.WithCancel(context.Background())

		combined, cancel := CombineContext(primary, secondary)
		defer cancel()

		assert.Equal(t, "cdp", combined.Value(key{}))
		cancelSecondary()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context not canceled by secondary")
		}
	})

	t.Run("adopts the secondary deadline", func(t *testing.T) {
		secondary, cancelSecondary := context.WithTimeout(context.Background(), time.Minute)
		defer cancelSecondary()

		combined, cancel := CombineContext(context.Background(), secondary)
		defer cancel()

		want, _ := secondary.Deadline()
		got, ok := combined.Deadline()
		require.True(t, ok)
		assert.Equal(t, want, got)
	})

	t.Run("detach survives parent cancellation", func(t *testing.T) {
		parent, cancelParent := context.WithCancel(context.WithValue(context.Background(), key{}, "v"))
		detached := Detach(parent)
		cancelParent()

		assert.NoError(t, detached.Err())
		assert.Nil(t, detached.Done())
		assert.Equal(t, "v", detached.Value(key{}))
	})
}
