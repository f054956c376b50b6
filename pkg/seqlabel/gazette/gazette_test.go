package gazette

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGitHubIconsFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"name": "Python.svg"},
			{"name": "Go-Dark.svg"},
			{"name": "Go-Light.svg"},
			{"name": "README.md"},
			{"name": "Docker.svg"}
		]`))
	}))
	defer srv.Close()

	src := &GitHubIcons{URL: srv.URL, Client: srv.Client()}
	skills, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	want := []string{"Python", "Go", "Go", "Docker"}
	if len(skills) != len(want) {
		t.Fatalf("expected %d skills, got %v", len(want), skills)
	}
	for i, s := range skills {
		if s != want[i] {
			t.Errorf("skill %d = %q, want %q", i, s, want[i])
		}
	}
}

func TestHTMLListFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<ul><li>Python</li><li> Apache  Kafka </li></ul>
			<table><tr><td>Docker</td></tr></table>
		</body></html>`))
	}))
	defer srv.Close()

	src := &HTMLList{URL: srv.URL, Client: srv.Client()}
	skills, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	want := []string{"Python", "Apache Kafka", "Docker"}
	if len(skills) != len(want) {
		t.Fatalf("expected %v, got %v", want, skills)
	}
	for i := range want {
		if skills[i] != want[i] {
			t.Errorf("skill %d = %q, want %q", i, skills[i], want[i])
		}
	}
}

func TestFetcherMergesAndDeduplicates(t *testing.T) {
	iconSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name": "Python.svg"}, {"name": "Docker.svg"}]`))
	}))
	defer iconSrv.Close()
	htmlSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<ul><li>python</li><li>Kubernetes</li></ul>`))
	}))
	defer htmlSrv.Close()

	f := &Fetcher{Sources: []Source{
		&GitHubIcons{URL: iconSrv.URL, Client: iconSrv.Client()},
		&HTMLList{URL: htmlSrv.URL, Client: htmlSrv.Client()},
	}}

	skills, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	// "python" collapses into "Python" case-insensitively; output is sorted.
	want := []string{"Docker", "Kubernetes", "Python"}
	if len(skills) != len(want) {
		t.Fatalf("expected %v, got %v", want, skills)
	}
	for i := range want {
		if skills[i] != want[i] {
			t.Errorf("skill %d = %q, want %q", i, skills[i], want[i])
		}
	}
}

func TestFetcherFailingSourceFailsFetch(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer bad.Close()

	f := &Fetcher{Sources: []Source{&GitHubIcons{URL: bad.URL, Client: bad.Client()}}}
	if _, err := f.Fetch(context.Background()); err == nil {
		t.Fatal("failing source should fail the fetch")
	}
}
