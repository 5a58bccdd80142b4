package handler

import (
	"strings"
	"time"

	"certledger/internal/certificate/fingerprint"
	dErrors "certledger/pkg/domain-errors"
)

// IssueRequest is the payload for drafting a certificate. The issuer is
// taken from the authenticated context, never from the body.
type IssueRequest struct {
	StudentName  string `json:"student_name"`
	StudentID    string `json:"student_id"`
	StudentEmail string `json:"student_email"`
	Course       string `json:"course"`
	Grade        string `json:"grade"`
	IssueDate    string `json:"issue_date"`
}

func (r *IssueRequest) Validate() error {
	for name, v := range map[string]string{
		"student_name":  r.StudentName,
		"student_id":    r.StudentID,
		"student_email": r.StudentEmail,
		"course":        r.Course,
		"grade":         r.Grade,
		"issue_date":    r.IssueDate,
	} {
		if strings.TrimSpace(v) == "" {
			return dErrors.Newf(dErrors.CodeBadRequest, "%s is required", name)
		}
	}
	if _, err := r.ParsedIssueDate(); err != nil {
		return err
	}
	return nil
}

// ParsedIssueDate accepts either a plain calendar date or a full
// RFC 3339 timestamp; normalization discards any time component later.
func (r *IssueRequest) ParsedIssueDate() (time.Time, error) {
	raw := strings.TrimSpace(r.IssueDate)
	if t, err := time.Parse(fingerprint.DateLayout, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, dErrors.New(dErrors.CodeBadRequest, "issue_date must be YYYY-MM-DD or RFC 3339")
}

// Metadata builds the fingerprint input from the request.
func (r *IssueRequest) Metadata() fingerprint.Metadata {
	issueDate, _ := r.ParsedIssueDate()
	return fingerprint.Metadata{
		StudentName: r.StudentName,
		StudentID:   r.StudentID,
		Course:      r.Course,
		Grade:       r.Grade,
		IssueDate:   issueDate,
	}
}

// ConfirmAnchorRequest is the payload for finalizing a draft.
type ConfirmAnchorRequest struct {
	RecordID        string `json:"record_id"`
	AnchorReference string `json:"anchor_reference"`
}

func (r *ConfirmAnchorRequest) Validate() error {
	if strings.TrimSpace(r.RecordID) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "record_id is required")
	}
	if strings.TrimSpace(r.AnchorReference) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "anchor_reference is required")
	}
	return nil
}

// SubmitAnchorRequest is the operator payload for the standalone
// ledger's write endpoint.
type SubmitAnchorRequest struct {
	Fingerprint string `json:"fingerprint"`
}

func (r *SubmitAnchorRequest) Validate() error {
	if !fingerprint.IsWellFormed(strings.TrimSpace(r.Fingerprint)) {
		return dErrors.New(dErrors.CodeBadRequest, "fingerprint must be a 64-character lowercase hex digest")
	}
	return nil
}
