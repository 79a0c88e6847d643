// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/tomtom215/recengine/internal/recommend"
)

type interactionPayload struct {
	UserID string `json:"user_id" validate:"required,notblank,max=16"`
	ItemID string `json:"item_id" validate:"required,notblank"`
	Type   string `json:"type" validate:"required,interaction_type"`
}

type itemPayload struct {
	ItemID string `json:"item_id" validate:"required,max=8"`
}

type batchPayload struct {
	Items []itemPayload `json:"items" validate:"required,min=1,max=2,dive"`
}

type queryParams struct {
	K     int    `json:"k" validate:"min=1,max=100"`
	Order string `validate:"omitempty,oneof=asc desc"`
}

func TestValidator_Shared(t *testing.T) {
	t.Parallel()

	if Validator() != Validator() {
		t.Error("Validator() returned different instances")
	}
}

func TestStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     interface{}
		wantField string
		wantTag   string
	}{
		{"valid interaction", &interactionPayload{UserID: "u1", ItemID: "i1", Type: "purchase"}, "", ""},
		{"type is case-insensitive", &interactionPayload{UserID: "u1", ItemID: "i1", Type: " Like "}, "", ""},
		{"missing user", &interactionPayload{ItemID: "i1", Type: "view"}, "user_id", "required"},
		{"blank user", &interactionPayload{UserID: "   ", ItemID: "i1", Type: "view"}, "user_id", "notblank"},
		{"user too long", &interactionPayload{UserID: strings.Repeat("u", 17), ItemID: "i1", Type: "view"}, "user_id", "max"},
		{"unknown type", &interactionPayload{UserID: "u1", ItemID: "i1", Type: "share"}, "type", "interaction_type"},
		{"valid batch", &batchPayload{Items: []itemPayload{{ItemID: "a"}, {ItemID: "b"}}}, "", ""},
		{"empty batch", &batchPayload{Items: []itemPayload{}}, "items", "min"},
		{"oversized batch", &batchPayload{Items: make([]itemPayload, 3)}, "items", "max"},
		{"bad item in batch", &batchPayload{Items: []itemPayload{{ItemID: "a"}, {ItemID: ""}}}, "item_id", "required"},
		{"k out of range", &queryParams{K: 0}, "k", "min"},
		{"bad order", &queryParams{K: 5, Order: "sideways"}, "Order", "oneof"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Struct(tt.input)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Struct() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Struct() = nil, want %s/%s failure", tt.wantField, tt.wantTag)
			}
			for _, f := range err.Fields {
				if f.Field == tt.wantField && f.Tag == tt.wantTag {
					return
				}
			}
			t.Errorf("no error on %s/%s in %v", tt.wantField, tt.wantTag, err)
		})
	}
}

func TestError_UnwrapsInvalidInteraction(t *testing.T) {
	t.Parallel()

	err := Struct(&interactionPayload{UserID: "u1", ItemID: "i1", Type: "share"})
	if !errors.Is(err, recommend.ErrInvalidInteraction) {
		t.Errorf("unknown type failure should match ErrInvalidInteraction, got %v", err)
	}

	err = Struct(&interactionPayload{ItemID: "i1", Type: "view"})
	if errors.Is(err, recommend.ErrInvalidInteraction) {
		t.Error("missing user_id should not match ErrInvalidInteraction")
	}
}

func TestError_Details(t *testing.T) {
	t.Parallel()

	single := Struct(&interactionPayload{UserID: "u1", ItemID: "i1", Type: "share"})
	if single.Error() != "type must be one of view, click, like, purchase" {
		t.Errorf("Error() = %q", single.Error())
	}
	if d := single.Details(); d["field"] != "type" || d["tag"] != "interaction_type" {
		t.Errorf("Details() = %v", d)
	}

	multi := Struct(&interactionPayload{})
	fields, ok := multi.Details()["fields"].([]FieldError)
	if !ok || len(fields) != 3 {
		t.Fatalf("Details() = %v, want 3 fields", multi.Details())
	}
	if !strings.Contains(multi.Error(), "user_id is required") {
		t.Errorf("Error() = %q", multi.Error())
	}

	empty := &Error{}
	if empty.Error() != "validation failed" || empty.Details() != nil {
		t.Errorf("empty error = %q / %v", empty.Error(), empty.Details())
	}
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input interface{}
		want  string
	}{
		{&interactionPayload{UserID: strings.Repeat("u", 17), ItemID: "i", Type: "view"}, "user_id must have at most 16 characters"},
		{&interactionPayload{UserID: " ", ItemID: "i", Type: "view"}, "user_id must not be blank"},
		{&batchPayload{Items: []itemPayload{}}, "items must have at least 1 entries"},
		{&queryParams{K: 500}, "k must be at most 100"},
		{&queryParams{K: 1, Order: "up"}, "Order must be one of: asc desc"},
	}
	for _, tt := range tests {
		err := Struct(tt.input)
		if err == nil {
			t.Errorf("%+v: expected error", tt.input)
			continue
		}
		if got := err.Fields[0].Message; got != tt.want {
			t.Errorf("message = %q, want %q", got, tt.want)
		}
	}
}
