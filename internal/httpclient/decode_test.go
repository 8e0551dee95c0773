package httpclient

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_CleanObjectIsIdentical(t *testing.T) {
	got, err := Normalize([]byte(`{"id":"p-1","price":"12.50","tags":["a","b"]}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"p-1","price":"12.50","tags":["a","b"]}`, string(got))
}

func TestNormalize_MarkupIsNonData(t *testing.T) {
	cases := []string{
		"<!DOCTYPE html><html><body>502 Bad Gateway</body></html>",
		"  <html><head><title>Error</title></head></html>",
		"<!doctype html>",
	}
	for _, c := range cases {
		_, err := Normalize([]byte(c))
		assert.ErrorIs(t, err, ErrNonDataResponse, c)
	}
}

func TestNormalize_EmbeddedObjectAfterNoise(t *testing.T) {
	got, err := Normalize([]byte(`Warning: deprecated in /srv/api.php line 4 {"ok":true,"n":2}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"n":2}`, string(got))
}

func TestNormalize_EmptyIsEmptyRecord(t *testing.T) {
	got, err := Normalize(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(got))

	got, err = Normalize([]byte("   \n"))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(got))
}

func TestNormalize_UnrecoverableIsEmptyRecord(t *testing.T) {
	// Lossy by contract: the caller gets an empty record, not an error.
	got, err := Normalize([]byte(`service temporarily {unavailable`))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(got))
}

func TestNormalize_EmbeddedArray(t *testing.T) {
	got, err := Normalize([]byte(`)]}',` + "\n" + `[{"id":1},{"id":2}]`))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1},{"id":2}]`, string(got))
}

func TestNormalize_SkipsInvalidCandidates(t *testing.T) {
	got, err := Normalize([]byte(`{broken} then {"name":"a } b","v":[1,{"w":"]"}]}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"a } b","v":[1,{"w":"]"}]}`, string(got))
}

func TestNormalize_JSONStringMentioningHTMLIsData(t *testing.T) {
	got, err := Normalize([]byte(`{"note":"<html> is allowed inside strings"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"note":"<html> is allowed inside strings"}`, string(got))
}

func TestNormalize_EmbeddedAfterUnclosedOpener(t *testing.T) {
	got, err := Normalize([]byte(`notice {pending ] {"ok":true} tail {`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(got))

	got, err = Normalize([]byte(`{ noise {"ok":true}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(got))
}

func TestNormalize_UnclosedOpenersStayLinear(t *testing.T) {
	for _, body := range []string{
		"x" + strings.Repeat("{", 1<<20),
		"x" + strings.Repeat("[{", 1<<19),
	} {
		done := make(chan json.RawMessage, 1)
		go func() {
			got, err := Normalize([]byte(body))
			assert.NoError(t, err)
			done <- got
		}()
		select {
		case got := <-done:
			assert.JSONEq(t, `{}`, string(got))
		case <-time.After(2 * time.Second):
			t.Fatal("Normalize did not finish on a 1 MiB body of unclosed openers")
		}
	}
}
