package models

import (
	"reflect"
	"testing"
)

func TestChatRequest_Validate(t *testing.T) {
	const id = "0b7c1e4e-5f7a-4d3e-9a51-3f5d2c6b8e10"
	tests := []struct {
		name string
		req  ChatRequest
		want map[string]string
	}{
		{"valid", ChatRequest{SessionID: id, Query: "what is the rate?"}, nil},
		{"missing both", ChatRequest{}, map[string]string{
			"session_id": "failed on 'required' tag",
			"query":      "failed on 'required' tag",
		}},
		{"bad session id", ChatRequest{SessionID: "abc", Query: "q"}, map[string]string{
			"session_id": "failed on 'uuid' tag",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.Validate(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUploadForm_Validate(t *testing.T) {
	const id = "0b7c1e4e-5f7a-4d3e-9a51-3f5d2c6b8e10"
	tests := []struct {
		name    string
		form    UploadForm
		wantErr bool
	}{
		{"new session with role", UploadForm{Role: "Product Lead"}, false},
		{"existing session without role", UploadForm{SessionID: id}, false},
		{"existing session with role", UploadForm{SessionID: id, Role: "Tech Lead"}, false},
		{"new session without role", UploadForm{}, true},
		{"malformed session id", UploadForm{SessionID: "nope", Role: "Tech Lead"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.form.Validate(); (got != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", got, tt.wantErr)
			}
		})
	}
}
