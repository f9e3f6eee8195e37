package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeGazetteer(t *testing.T) *httptest.Server {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/places/1001902":
			http.Redirect(w, r, "/places/991367", http.StatusMovedPermanently)
		case "/places/991367", "/places/423025":
			w.WriteHeader(http.StatusOK)
		case "/places/991367/json":
			_, _ = w.Write([]byte(`{"uri":"` + srv.URL + `/places/991367","title":"Roma","placeTypes":["settlement","urban"],"names":[{"romanized":"Roma, Rome"}]}`))
		case "/places/423025/json":
			_, _ = w.Write([]byte(`{"uri":"` + srv.URL + `/places/423025","title":"Roma","placeTypes":["river"],"names":[{"romanized":"Roma, Tiberis"}]}`))
		case "/search_rss":
			if r.URL.Query().Get("Subject_operator") != "and" && len(r.URL.Query()["Subject"]) > 0 {
				http.Error(w, "unexpected operator", http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns="http://purl.org/rss/1.0/">
<channel rdf:about="` + srv.URL + `/search_rss"><title>Search</title><link>` + srv.URL + `</link><description>d</description></channel>
<item rdf:about="` + srv.URL + `/places/991367"><title>Roma</title><link>` + srv.URL + `/places/991367</link><description>Capital.</description></item>
</rdf:RDF>`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Setenv("LOG_LEVEL", "error")
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	base := []string{"pleiades", "--base-url", srv.URL, "--user-agent", "PleiadesTest/1.0", "--no-cache"}
	err := app.Run(append(base, args...))
	return out.String(), err
}

func TestResolveCommand(t *testing.T) {
	srv := fakeGazetteer(t)
	out, err := run(t, srv, "resolve", "1001902")
	require.NoError(t, err)
	require.Equal(t, "1001902\t"+srv.URL+"/places/991367\n", out)

	_, err = run(t, srv, "resolve", "not-a-pid")
	require.Error(t, err)
}

func TestGetCommand(t *testing.T) {
	srv := fakeGazetteer(t)
	out, err := run(t, srv, "get", "991367")
	require.NoError(t, err)
	require.Contains(t, out, `"title": "Roma"`)
}

func TestLookupCommand(t *testing.T) {
	srv := fakeGazetteer(t)
	out, err := run(t, srv, "lookup", "--load", "991367,423025", "Roma")
	require.NoError(t, err)
	require.Equal(t, []string{srv.URL + "/places/423025", srv.URL + "/places/991367"}, strings.Fields(out))

	out, err = run(t, srv, "lookup", "--load", "991367,423025", "--index", "types", "--selector", "placeTypes", "--op", "or", "urban", "river")
	require.NoError(t, err)
	require.Equal(t, []string{srv.URL + "/places/423025", srv.URL + "/places/991367"}, strings.Fields(out))

	_, err = run(t, srv, "lookup", "--op", "xor", "Roma")
	require.Error(t, err)
}

func TestLookupCommand_SelectorWithoutIndex(t *testing.T) {
	srv := fakeGazetteer(t)
	out, err := run(t, srv, "lookup", "--load", "991367,423025", "--selector", "names", "Tiberis")
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/places/423025\n", out)

	out, err = run(t, srv, "suggest", "--load", "991367", "--selector", "names", "--dist", "0", "rome")
	require.NoError(t, err)
	require.Equal(t, "Rome\n", out)

	_, err = run(t, srv, "lookup", "--index", "titles", "--selector", "names", "Roma")
	require.Error(t, err)
	require.Contains(t, err.Error(), "--selector needs an --index name")
}

func TestSearchCommand(t *testing.T) {
	srv := fakeGazetteer(t)
	out, err := run(t, srv, "search", "--tag", "capital", "--tag-op", "and", "roma")
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/places/991367\tRoma\n", out)

	_, err = run(t, srv, "search")
	require.Error(t, err)

	_, err = run(t, srv, "search", "--tag-op", "xor", "roma")
	require.Error(t, err)
}

func TestSuggestCommand(t *testing.T) {
	srv := fakeGazetteer(t)
	out, err := run(t, srv, "suggest", "--load", "991367", "--dist", "1", "roma")
	require.NoError(t, err)
	require.Equal(t, "Roma\n", out)
}
