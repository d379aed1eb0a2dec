package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"bouncer/internal/delivery/http/helpers"
	"bouncer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emailBody(userID string) map[string]any {
	return map[string]any{
		"recipients": []string{"a@example.com", "b@example.com", "c@example.com"},
		"message":    "Doors open at **7pm**",
		"eventName":  "Launch",
		"userId":     userID,
	}
}

func TestEmailController_SendEmails(t *testing.T) {
	// One bounce out of three recipients is still a 200 with per-recipient details.
	res := &domain.BulkEmailResult{Successful: 2, Failed: 1, Details: []domain.RecipientResult{
		{Email: "a@example.com", Success: true},
		{Email: "b@example.com", Error: "address not found"},
		{Email: "c@example.com", Success: true},
	}}
	svc := &fakeMessagingService{res: res}
	c := NewEmailController(testLogger, svc)

	rr := serve("POST /api/send-emails", c.SendEmails, newRequest(t, http.MethodPost, "/api/send-emails", emailBody(ownerID), ownerID))
	require.Equal(t, http.StatusOK, rr.Code)
	var got SendEmailsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.True(t, got.Success)
	assert.Equal(t, "Emails sent: 2 successful, 1 failed", got.Message)
	assert.Equal(t, 2, got.Results.Successful)
	assert.Equal(t, 1, got.Results.Failed)
	assert.Equal(t, "b@example.com", got.Results.Details[1].Email)
	assert.False(t, got.Results.Details[1].Success)
	assert.Equal(t, ownerID, svc.lastReq.OrganizerUserID)
	assert.Equal(t, "Launch", svc.lastReq.EventName)
}

func TestEmailController_SendEmails_Errors(t *testing.T) {
	tests := []struct {
		name        string
		body        map[string]any
		svcErr      error
		res         *domain.BulkEmailResult
		wantStatus  int
		wantCode    string
		wantReauth  bool
		wantResults *domain.BulkEmailResult
	}{
		{name: "someone else's user id", body: emailBody(guestID), wantStatus: http.StatusForbidden, wantCode: helpers.ErrCodeForbidden},
		{name: "no recipients", body: func() map[string]any { b := emailBody(ownerID); b["recipients"] = []string{}; return b }(), wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeBadRequest},
		{name: "blank message", body: func() map[string]any { b := emailBody(ownerID); b["message"] = " "; return b }(), wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeBadRequest},
		{name: "gmail not connected", body: emailBody(ownerID), svcErr: domain.ErrMailNotConnected, wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeMailNotConnected},
		{
			name:        "grant revoked mid batch",
			body:        emailBody(ownerID),
			svcErr:      fmt.Errorf("send: %w", domain.ErrMailGrantRevoked),
			res:         &domain.BulkEmailResult{Successful: 1, Failed: 1},
			wantStatus:  http.StatusUnauthorized,
			wantCode:    helpers.ErrCodeReauthorize,
			wantReauth:  true,
			wantResults: &domain.BulkEmailResult{Successful: 1, Failed: 1},
		},
		{name: "provider down", body: emailBody(ownerID), svcErr: fmt.Errorf("%w: gmail 503", domain.ErrUpstream), wantStatus: http.StatusBadGateway, wantCode: helpers.ErrCodeUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewEmailController(testLogger, &fakeMessagingService{err: tt.svcErr, res: tt.res})
			rr := serve("POST /api/send-emails", c.SendEmails, newRequest(t, http.MethodPost, "/api/send-emails", tt.body, ownerID))

			require.Equal(t, tt.wantStatus, rr.Code)
			body := decodeError(t, rr)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantReauth, body.Reauthorize)
			assert.Equal(t, tt.wantResults, body.Results, "partial progress is reported with the error")
		})
	}
}

func TestEmailController_ListRecipients(t *testing.T) {
	svc := &fakeMessagingService{recipients: []string{"a@example.com"}}
	c := NewEmailController(testLogger, svc)

	rr := serve("GET /api/events/{eventID}/recipients", c.ListRecipients,
		newRequest(t, http.MethodGet, "/api/events/"+eventID+"/recipients?audience=custom&emails=a@example.com,%20,x@example.com", nil, ownerID))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"recipients":["a@example.com"]}`, rr.Body.String())
	assert.Equal(t, domain.AudienceCustom, svc.lastAudience)
	assert.Equal(t, []string{"a@example.com", "x@example.com"}, svc.lastCustom)

	svc.err = fmt.Errorf("%w: unknown audience", domain.ErrInvalidInput)
	rr = serve("GET /api/events/{eventID}/recipients", c.ListRecipients,
		newRequest(t, http.MethodGet, "/api/events/"+eventID+"/recipients?audience=vips", nil, ownerID))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
