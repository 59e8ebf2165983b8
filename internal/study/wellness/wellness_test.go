package wellness

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickerNeverRepeats(t *testing.T) {
	p := NewPicker([]string{"a", "b", "c"}, 42)
	prev := p.Pick()
	seen := map[string]bool{prev: true}
	for i := 0; i < 200; i++ {
		next := p.Pick()
		require.NotEqual(t, prev, next)
		seen[next] = true
		prev = next
	}
	assert.Len(t, seen, 3)
}

func TestPickerEdgeSizes(t *testing.T) {
	assert.Equal(t, "", NewPicker(nil, 1).Pick())
	one := NewPicker([]string{"only"}, 1)
	assert.Equal(t, "only", one.Pick())
	assert.Equal(t, "only", one.Pick())
}

func TestDefaultListsHaveNoDuplicates(t *testing.T) {
	for name, list := range map[string][]string{"quotes": DefaultQuotes(), "reminders": DefaultReminders()} {
		seen := map[string]bool{}
		for _, s := range list {
			assert.False(t, seen[s], "%s: duplicate %q", name, s)
			seen[s] = true
		}
		assert.NotEmpty(t, list, name)
	}
}

func TestRemoteQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"q":"Stay hungry.","a":"Jobs"}]`))
	}))
	defer srv.Close()

	q, err := NewRemote(srv.Client(), srv.URL, "").Quote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Stay hungry. -Jobs ✨", q)
}

func TestRemoteCatFact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":["Cats sleep a lot."]}`))
	}))
	defer srv.Close()

	f, err := NewRemote(srv.Client(), "", srv.URL).CatFact(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Cats sleep a lot. 🐾🐱", f)
}

func TestRemoteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, `oops`},
		{"bad json", http.StatusOK, `{`},
		{"empty", http.StatusOK, `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			_, err := NewRemote(srv.Client(), srv.URL, "").Quote(context.Background())
			assert.Error(t, err)
		})
	}
}

type failingSource struct{}

func (failingSource) Quote(context.Context) (string, error)   { return "", errors.New("down") }
func (failingSource) CatFact(context.Context) (string, error) { return "", errors.New("down") }

func TestMotivatorFallsBackAndNeverRepeats(t *testing.T) {
	m := NewMotivator(NewPicker([]string{"x", "y"}, 7), failingSource{})
	prev := ""
	sawFallback := false
	for i := 0; i < 100; i++ {
		q, _ := m.Quote(context.Background())
		require.NotEmpty(t, q)
		require.NotEqual(t, prev, q)
		if q == FallbackQuote {
			sawFallback = true
		}
		prev = q
	}
	assert.True(t, sawFallback)
}

func TestCatsFallback(t *testing.T) {
	c := NewCats(failingSource{}, "", "", 3)
	cat, err := c.Random(context.Background())
	assert.Error(t, err)
	assert.Equal(t, FallbackCatFact, cat.Fact)
	assert.Equal(t, DefaultCatURL, cat.ImageURL)
}
