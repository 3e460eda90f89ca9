package main

import (
	"reflect"
	"sort"
	"testing"
)

func TestSegmentMatches(t *testing.T) {
	if !segmentMatches("/svc/web/run", "web") {
		t.Error("expected exact component match")
	}
	if segmentMatches("/svc/web/run", "webhook") {
		t.Error("did not expect substring to match as a segment")
	}
}

func TestFilterPathListExactBeatsGlob(t *testing.T) {
	known := []string{"/svc/web", "/svc/webhook", "/svc/worker"}
	got := filterPathList("web", known)
	want := []string{"/svc/web"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFilterPathListFallsBackToGlob(t *testing.T) {
	known := []string{"/svc/web-a", "/svc/web-b", "/svc/worker"}
	got := filterPathList("/svc/web-*", known)
	sort.Strings(got)
	want := []string{"/svc/web-a", "/svc/web-b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFilterPathListFallsBackToBothSides(t *testing.T) {
	known := []string{"/svc/group/web", "/svc/group/worker", "/svc/other"}
	got := filterPathList("web", append([]string{}, known...))
	if len(got) != 1 || got[0] != "/svc/group/web" {
		t.Fatalf("got %v", got)
	}

	got = filterPathList("group", known)
	sort.Strings(got)
	want := []string{"/svc/group/web", "/svc/group/worker"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestResolvePathsDedupesAndErrorsLoudly(t *testing.T) {
	known := []string{"/svc/web", "/svc/worker"}

	got, err := resolvePaths([]string{"web", "web"}, known)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"/svc/web"}) {
		t.Fatalf("expected dedup, got %v", got)
	}

	if _, err := resolvePaths([]string{"missing"}, known); err == nil {
		t.Error("expected an error for an unmatched argument")
	}
}

func TestKnownPathsFromRosterAndStatus(t *testing.T) {
	roster := map[string]bool{"/svc/web": true, "/svc/worker": false}
	status := []string{"/svc/worker", "/svc/adhoc"}

	got := knownPathsFromRosterAndStatus(roster, status)
	sort.Strings(got)
	want := []string{"/svc/adhoc", "/svc/web", "/svc/worker"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
