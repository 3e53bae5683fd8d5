package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/listingprice-indexer/pkg/errors"
)

type idsRequest struct {
	ProductIDs []string `json:"productIds" validate:"required,min=1,dive,notblank"`
}

func decode(t *testing.T, body string) error {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dest idsRequest
	return DecodeJSONBody(httptest.NewRecorder(), req, &dest)
}

func detailsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details %T", typed.Details())
	}
	return details
}

func TestDecodeJSONBodyAcceptsValidBody(t *testing.T) {
	if err := decode(t, `{"productIds":["a"]}`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDecodeJSONBodyRejects(t *testing.T) {
	cases := map[string]string{
		"empty body":    ``,
		"malformed":     `{"productIds":`,
		"syntax":        `{"productIds":[a]}`,
		"wrong type":    `{"productIds":"a"}`,
		"unknown field": `{"productIds":["a"],"force":true}`,
		"trailing data": `{"productIds":["a"]} {"productIds":["b"]}`,
		"missing":       `{}`,
		"empty":         `{"productIds":[]}`,
		"blank id":      `{"productIds":["a","  "]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			err := decode(t, body)
			if err == nil {
				t.Fatal("expected error")
			}
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation code, got %v", err)
			}
		})
	}
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	body := `{"productIds":["` + strings.Repeat("a", MaxBodyBytes) + `"]}`
	details := detailsOf(t, decode(t, body))
	if !strings.Contains(details["body"], "at most") {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestValidationDetailsUseJSONNames(t *testing.T) {
	details := detailsOf(t, decode(t, `{"productIds":[]}`))
	if details["productIds"] != "must contain at least 1 items" {
		t.Fatalf("unexpected details %v", details)
	}

	details = detailsOf(t, decode(t, `{"productIds":["a"],"force":true}`))
	if details["force"] != "is not allowed" {
		t.Fatalf("unexpected details %v", details)
	}

	details = detailsOf(t, decode(t, `{"productIds":"a"}`))
	if details["productIds"] != "must be []string" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestValidationDetailsKeepDiveIndex(t *testing.T) {
	details := detailsOf(t, decode(t, `{"productIds":["a"," "]}`))
	if details["productIds[1]"] != "must not be blank" {
		t.Fatalf("unexpected details %v", details)
	}
}
