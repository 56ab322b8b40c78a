package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

const userAgent = "xone-sync/1.0 (Go net/http)"

// XoneClient publishes departments and collaborators to the XoneCloud
// register API.
type XoneClient struct {
	cfg    XoneConfig
	client *http.Client
	retry  RetryPolicy
	log    *zap.Logger
}

// NewXoneClient creates a publisher for the configured endpoints.
func NewXoneClient(cfg XoneConfig, client *http.Client, retry RetryPolicy, log *zap.Logger) *XoneClient {
	return &XoneClient{cfg: cfg, client: client, retry: retry, log: log}
}

type departmentPayload struct {
	Lang        string       `json:"lang"`
	Departments []Department `json:"departments"`
}

// PublishDepartments writes the department set, one call per record or one
// bulk call, honoring dry-run. Record-level failures are accumulated in the
// report; only an authentication failure aborts.
func (x *XoneClient) PublishDepartments(ctx context.Context, departments []Department, run RunConfig) (*PublishReport, error) {
	report := &PublishReport{Collection: "departments"}

	if run.DeptPerRecord {
		for _, dept := range departments {
			payload := departmentPayload{Lang: "pt-BR", Departments: []Department{dept}}
			if err := x.dispatch(ctx, report, x.cfg.DepartmentURL, dept.Name, 1, payload, run.DeptDryRun); err != nil {
				return report, err
			}
		}
		return report, nil
	}

	if len(departments) == 0 {
		return report, nil
	}
	payload := departmentPayload{Lang: "pt-BR", Departments: departments}
	err := x.dispatch(ctx, report, x.cfg.DepartmentURL, "departments", len(departments), payload, run.DeptDryRun)
	return report, err
}

// PublishCollaborators writes the collaborator list in chunks of at most
// CollabBatchSize records (a single call when the list fits). Per-record mode
// forces chunks of one. TestSingleUser narrows the list to the one matching
// record before dispatch.
func (x *XoneClient) PublishCollaborators(ctx context.Context, collaborators []Collaborator, run RunConfig) (*PublishReport, error) {
	report := &PublishReport{Collection: "collaborators"}

	if run.TestSingleUser != "" {
		collaborators = selectSingleUser(collaborators, run.TestSingleUser)
		if len(collaborators) == 0 {
			x.log.Warn("no collaborator matches TEST_SINGLE_USER, nothing to send",
				zap.String("wanted", run.TestSingleUser))
			return report, nil
		}
		x.log.Info("test mode, sending a single collaborator",
			zap.String("username", collaborators[0].Username))
	}
	if len(collaborators) == 0 {
		return report, nil
	}

	chunkSize := run.CollabBatchSize
	if run.CollabPerRecord {
		chunkSize = 1
	}
	if chunkSize < 1 || chunkSize > len(collaborators) {
		chunkSize = len(collaborators)
	}
	totalChunks := (len(collaborators) + chunkSize - 1) / chunkSize

	for idx := 0; idx < len(collaborators); idx += chunkSize {
		end := idx + chunkSize
		if end > len(collaborators) {
			end = len(collaborators)
		}
		chunk := collaborators[idx:end]

		name := chunk[0].Username
		if chunkSize > 1 {
			name = fmt.Sprintf("chunk %d/%d", idx/chunkSize+1, totalChunks)
		}
		if err := x.dispatch(ctx, report, x.cfg.CollaboratorURL, name, len(chunk), chunk, run.CollabDryRun); err != nil {
			return report, err
		}
	}
	return report, nil
}

func selectSingleUser(collaborators []Collaborator, wanted string) []Collaborator {
	for _, c := range collaborators {
		if c.ExternalId == wanted || c.Username == wanted {
			return []Collaborator{c}
		}
	}
	return nil
}

// dispatch performs one write call (or records it, in dry-run). The returned
// error is non-nil only for authentication failures; anything else becomes a
// report entry and the run continues.
func (x *XoneClient) dispatch(ctx context.Context, report *PublishReport, uri, name string, records int, payload any, dryRun bool) error {
	if dryRun {
		data, err := json.Marshal(payload)
		if err != nil {
			report.failure(name, records, err)
			return nil
		}
		x.log.Info("dry run, would send",
			zap.String("collection", report.Collection),
			zap.String("name", name),
			zap.Int("records", records),
			zap.Int("payload_bytes", len(data)))
		report.wouldSend(name, records)
		return nil
	}

	response, err := x.postJSON(ctx, uri, payload)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return authErr
		}
		x.log.Error("publish failed",
			zap.String("collection", report.Collection),
			zap.String("name", name),
			zap.Error(err))
		report.failure(name, records, err)
		return nil
	}

	x.log.Info("published",
		zap.String("collection", report.Collection),
		zap.String("name", name),
		zap.Int("records", records),
		zap.String("response", response))
	report.success(name, records, response)
	return nil
}

// maxResponseLen bounds how much of the target's reply the report keeps.
const maxResponseLen = 300

func (x *XoneClient) postJSON(ctx context.Context, uri string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var response string
	err = x.retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		// The register API expects the raw token, no "Bearer" prefix.
		req.Header.Set("Authorization", x.cfg.APIToken)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", userAgent)

		resp, err := x.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
			if len(body) > maxResponseLen {
				body = body[:maxResponseLen]
			}
			response = string(body)
			return nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(&AuthError{Endpoint: "XoneCloud API", Status: resp.StatusCode, Detail: string(body)})
		case retryableStatus(resp.StatusCode):
			return &httpStatusError{Method: req.Method, URL: uri, Status: resp.StatusCode, Body: string(body)}
		default:
			return backoff.Permanent(&httpStatusError{Method: req.Method, URL: uri, Status: resp.StatusCode, Body: string(body)})
		}
	})
	return response, err
}

// Err folds every failed entry into one aggregated error, nil when all
// records made it.
func (r *PublishReport) Err() error {
	if r == nil || r.Failed == 0 {
		return nil
	}
	var result *multierror.Error
	for _, e := range r.Entries {
		if e.Error != "" {
			result = multierror.Append(result, fmt.Errorf("%s %s: %s", r.Collection, e.Name, e.Error))
		}
	}
	return result.ErrorOrNil()
}

// Err aggregates both collections' record-level failures.
func (s *RunSummary) Err() error {
	var result *multierror.Error
	result = multierror.Append(result, s.Departments.Err(), s.Collaborators.Err())
	return result.ErrorOrNil()
}
