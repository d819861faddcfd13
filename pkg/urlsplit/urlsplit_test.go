package urlsplit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitSingleURLUnchanged(t *testing.T) {
	cases := []string{
		"http://example.com/path",
		"https://example.com/",
		"http://httpwww.mp3stahuj.cz/henry-d-zabava.mp3",
		"https://cdn.example.com/httpdocs/file.zip",
	}
	for _, raw := range cases {
		require.Equal(t, []string{raw}, Split(raw), "input %q", raw)
	}
}

func TestSplitSchemelessUnchanged(t *testing.T) {
	require.Equal(t, []string{"www.example.com/page"}, Split("www.example.com/page"))
	require.Equal(t, []string{""}, Split(""))
	require.Equal(t, []string{"not a url at all"}, Split("not a url at all"))
}

func TestSplitTwoConcatenatedURLs(t *testing.T) {
	got := Split("http://example.com/http://example2.com")
	require.Equal(t, []string{"http://example.com/", "http://example2.com"}, got)
}

func TestSplitMixedSchemes(t *testing.T) {
	got := Split("https://a.example/xhttp://b.example/yhttps://c.example")
	require.Equal(t, []string{"https://a.example/x", "http://b.example/y", "https://c.example"}, got)
}

func TestSplitLeadingGarbageKeptInFirstChunk(t *testing.T) {
	// Text before the first scheme belongs to nothing; with two or more
	// occurrences the chunks start at the occurrences, so a leading prefix
	// only survives in the single-occurrence path.
	got := Split("see http://a.example")
	require.Equal(t, []string{"see http://a.example"}, got)
}

func TestSplitConcatenationEqualsInput(t *testing.T) {
	inputs := []string{
		"http://a.example/1http://b.example/2http://c.example/3",
		"https://a.example/http://b.example",
		"http://a.example/ http://b.example",
	}
	for _, raw := range inputs {
		chunks := Split(raw)
		require.Equal(t, raw, strings.Join(chunks, ""), "input %q", raw)
		for _, chunk := range chunks[1:] {
			require.True(t, strings.HasPrefix(chunk, "http://") || strings.HasPrefix(chunk, "https://"))
		}
	}
}

func TestSplitIdempotentPerChunk(t *testing.T) {
	chunks := Split("http://a.example/path/http://b.example/qhttps://c.example")
	require.Len(t, chunks, 3)
	for _, chunk := range chunks {
		require.Equal(t, []string{chunk}, Split(chunk))
	}
}

func TestSplitHTTPSNotDoubleCounted(t *testing.T) {
	// "https://" contains no nested "http://" occurrence.
	require.Equal(t, []string{"https://example.com"}, Split("https://example.com"))
}
