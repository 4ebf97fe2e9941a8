package debugreq

import (
	"net/http"
	"reflect"
	"testing"
)

func TestBuildParamsCoalescesDuplicateKeys(t *testing.T) {
	items := []RequestItem{
		{Key: "id", Value: "a", Selected: true},
		{Key: "page", Value: "1", Selected: true},
		{Key: "id", Value: "b", Selected: true},
		{Key: "skip", Value: "x", Selected: false},
		{Key: "id", Value: "c", Selected: true},
	}

	got := BuildParams(items)
	if !reflect.DeepEqual(got.Keys(), []string{"id", "page"}) {
		t.Fatalf("expected first-seen key order, got %v", got.Keys())
	}
	id, ok := got.Get("id")
	if !ok || !id.IsMulti() {
		t.Fatalf("expected multi-valued id, got %#v", id)
	}
	if !reflect.DeepEqual(id.Values(), []string{"a", "b", "c"}) {
		t.Fatalf("unexpected id values %v", id.Values())
	}
	page, _ := got.Get("page")
	if page.IsMulti() || page.Scalar() != "1" {
		t.Fatalf("expected scalar page, got %#v", page)
	}
	if _, ok := got.Get("skip"); ok {
		t.Fatalf("unselected row must not contribute")
	}
}

func TestBuildParamsTwoValuesBecomeExactPair(t *testing.T) {
	got := BuildParams([]RequestItem{
		{Key: "k", Value: "a", Selected: true},
		{Key: "k", Value: "b", Selected: true},
	})
	v, _ := got.Get("k")
	if !reflect.DeepEqual(v.Interface(), []string{"a", "b"}) {
		t.Fatalf("expected [a b], got %#v", v.Interface())
	}
}

func TestBuildParamsIsDeterministicAndPure(t *testing.T) {
	items := []RequestItem{
		{Key: "b", Value: "1", Selected: true},
		{Key: "a", Value: "2", Selected: true},
		{Key: "b", Value: "3", Selected: true},
		{Key: "c", Value: "4"},
	}
	snapshot := append([]RequestItem(nil), items...)

	first := BuildParams(items).Map()
	second := BuildParams(items).Map()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical output, got %#v vs %#v", first, second)
	}
	if !reflect.DeepEqual(BuildParams(items).Keys(), BuildParams(items).Keys()) {
		t.Fatalf("expected stable key order")
	}
	if !reflect.DeepEqual(items, snapshot) {
		t.Fatalf("input rows were modified")
	}
}

func TestBuildHeadersSameAlgorithm(t *testing.T) {
	got := BuildHeaders([]RequestItem{
		{Key: "X-Tag", Value: "one", Selected: true},
		{Key: "X-Tag", Value: "two", Selected: true},
		{Key: "accept", Value: "*/*", Selected: true},
	})
	h := http.Header{}
	got.ApplyHeaders(h)
	if !reflect.DeepEqual(h["X-Tag"], []string{"one", "two"}) {
		t.Fatalf("unexpected X-Tag values %v", h["X-Tag"])
	}
	if !reflect.DeepEqual(h["accept"], []string{"*/*"}) {
		t.Fatalf("expected raw key to be preserved, got %#v", h)
	}
}

func TestURLValuesRepeatsMultiKeys(t *testing.T) {
	got := BuildParams([]RequestItem{
		{Key: "tag", Value: "a", Selected: true},
		{Key: "tag", Value: "b", Selected: true},
		{Key: "q", Value: "go lang", Selected: true},
	})
	if enc := got.URLValues().Encode(); enc != "q=go+lang&tag=a&tag=b" {
		t.Fatalf("unexpected encoding %q", enc)
	}
}

func TestEmptyValues(t *testing.T) {
	var zero Values
	if zero.Len() != 0 || len(zero.Keys()) != 0 {
		t.Fatalf("expected zero Values to be empty")
	}
	if _, ok := zero.Get("x"); ok {
		t.Fatalf("expected lookup miss")
	}
	if got := BuildHeaders(nil); got.Len() != 0 {
		t.Fatalf("expected empty result for nil rows")
	}
}
