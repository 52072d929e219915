// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package validation

import (
	"strings"
	"sync"
	"testing"
)

type rankBody struct {
	UserID     string   `json:"user_id" validate:"required"`
	Candidates []string `json:"candidates" validate:"min=1,unique,dive,required"`
	Hour       *int     `json:"hour,omitempty" validate:"omitempty,gte=0,lte=23"`
	Device     string   `json:"device" validate:"omitempty,max=4"`
}

func intPtr(v int) *int { return &v }

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      rankBody
		wantField string
		wantTag   string
		wantMsg   string
	}{
		{"valid", rankBody{UserID: "u1", Candidates: []string{"a", "b"}, Hour: intPtr(0)}, "", "", ""},
		{"missing user", rankBody{Candidates: []string{"a"}}, "user_id", "required", "user_id is required"},
		{"empty candidates", rankBody{UserID: "u1", Candidates: []string{}}, "candidates", "min", "candidates must have at least 1 items"},
		{"duplicate candidates", rankBody{UserID: "u1", Candidates: []string{"a", "a"}}, "candidates", "unique", "candidates must not contain duplicates"},
		{"blank candidate", rankBody{UserID: "u1", Candidates: []string{"a", ""}}, "candidates[1]", "required", "candidates[1] is required"},
		{"hour too large", rankBody{UserID: "u1", Candidates: []string{"a"}, Hour: intPtr(24)}, "hour", "lte", "hour must be less than or equal to 23"},
		{"device too long", rankBody{UserID: "u1", Candidates: []string{"a"}, Device: "television"}, "device", "max", "device must have at most 4 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateStruct(&tt.body)
			if tt.wantTag == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			fe := err.Errors()[0]
			if fe.Field() != tt.wantField || fe.Tag() != tt.wantTag {
				t.Errorf("got field=%q tag=%q, want field=%q tag=%q", fe.Field(), fe.Tag(), tt.wantField, tt.wantTag)
			}
			if fe.Error() != tt.wantMsg {
				t.Errorf("message = %q, want %q", fe.Error(), tt.wantMsg)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	t.Parallel()

	single := ValidateStruct(&rankBody{Candidates: []string{"a"}})
	apiErr := single.ToAPIError()
	if apiErr.Code != CodeValidationError {
		t.Errorf("Code = %q", apiErr.Code)
	}
	if apiErr.Details["field"] != "user_id" {
		t.Errorf("Details = %v", apiErr.Details)
	}

	multi := ValidateStruct(&rankBody{})
	apiErr = multi.ToAPIError()
	if !strings.Contains(apiErr.Message, "user_id is required") || !strings.Contains(apiErr.Message, "candidates") {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Errorf("Details missing fields: %v", apiErr.Details)
	}
}

func TestGetValidator_Singleton(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	got := make(chan interface{}, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got <- GetValidator()
		}()
	}
	wg.Wait()
	close(got)

	first := GetValidator()
	for v := range got {
		if v != interface{}(first) {
			t.Fatal("GetValidator returned different instances")
		}
	}
}
