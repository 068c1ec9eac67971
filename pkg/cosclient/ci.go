package cosclient

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/vcpagent/cosvault/pkg/dto"
)

const (
	virusDetectPath  = "/virus/detect"
	signatureWindow  = 10 * time.Minute
	maxErrorBodySize = 64 * 1024
)

// ciClient talks to the CI virus-detection API of the bucket. It is an
// XML-over-HTTP API living on a per-bucket endpoint, authorized with the
// COS request signature.
type ciClient struct {
	baseURL   string
	secretID  string
	secretKey string
	callback  string
	httpc     *http.Client
	now       func() time.Time
}

func newCIClient(bucket, region, secretID, secretKey, callback string) *ciClient {
	return &ciClient{
		baseURL:   fmt.Sprintf("https://%s.ci.%s.myqcloud.com", bucket, region),
		secretID:  secretID,
		secretKey: secretKey,
		callback:  callback,
		httpc:     &http.Client{},
		now:       time.Now,
	}
}

type virusScanInput struct {
	Object string `xml:"Object,omitempty"`
	URL    string `xml:"Url,omitempty"`
}

type virusScanConf struct {
	DetectType string `xml:"DetectType"`
	Callback   string `xml:"Callback,omitempty"`
}

type virusSubmitRequest struct {
	XMLName xml.Name       `xml:"Request"`
	Input   virusScanInput `xml:"Input"`
	Conf    virusScanConf  `xml:"Conf"`
}

type virusDetectRecord struct {
	FileName  string `xml:"FileName"`
	VirusName string `xml:"VirusName"`
}

type virusJobsDetail struct {
	JobID        string              `xml:"JobId"`
	State        string              `xml:"State"`
	CreationTime string              `xml:"CreationTime"`
	Object       string              `xml:"Object"`
	URL          string              `xml:"Url"`
	Suggestion   string              `xml:"Suggestion"`
	DetectDetail []virusDetectRecord `xml:"DetectDetail"`
	Code         string              `xml:"Code"`
	Message      string              `xml:"Message"`
}

type virusJobResponse struct {
	XMLName    xml.Name        `xml:"Response"`
	JobsDetail virusJobsDetail `xml:"JobsDetail"`
}

type ciErrorResponse struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

// submit creates a virus-scan job for a stored object key or an
// external URL. Exactly one of key and rawURL is expected to be set;
// the caller validates that.
func (c *ciClient) submit(ctx context.Context, key, rawURL string) (*dto.ScanJob, error) {
	req := virusSubmitRequest{
		Input: virusScanInput{Object: key, URL: rawURL},
		Conf:  virusScanConf{DetectType: "virus", Callback: c.callback},
	}
	body, err := xml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("ScanSubmit: error encoding request: %w", err)
	}

	detail, err := c.do(ctx, http.MethodPost, virusDetectPath, body)
	if err != nil {
		return nil, fmt.Errorf("ScanSubmit: %w", err)
	}
	return jobFromDetail(detail), nil
}

// query fetches the current state of a scan job.
func (c *ciClient) query(ctx context.Context, jobID string) (*dto.ScanJob, error) {
	detail, err := c.do(ctx, http.MethodGet, virusDetectPath+"/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, fmt.Errorf("ScanQuery: %w", err)
	}
	job := jobFromDetail(detail)
	if job.JobID == "" {
		job.JobID = jobID
	}
	return job, nil
}

func (c *ciClient) do(ctx context.Context, method, path string, body []byte) (*virusJobsDetail, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}
	now := c.now()
	req.Header.Set("Authorization",
		signRequest(c.secretID, c.secretKey, method, path, nil, nil, now, now.Add(signatureWindow)))
	if body != nil {
		req.Header.Set("Content-Type", "application/xml")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("COS client error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// Error bodies are capped; a success body may legitimately be
		// large (one DetectDetail entry per infected file).
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		if err != nil {
			return nil, fmt.Errorf("COS client error: reading response: %w", err)
		}
		svcErr := &ServiceError{StatusCode: resp.StatusCode}
		var ciErr ciErrorResponse
		if xml.Unmarshal(data, &ciErr) == nil && ciErr.Code != "" {
			svcErr.Code = ciErr.Code
			svcErr.Message = ciErr.Message
		} else {
			svcErr.Code = http.StatusText(resp.StatusCode)
			svcErr.Message = string(data)
		}
		return nil, svcErr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("COS client error: reading response: %w", err)
	}

	var out virusJobResponse
	if err := xml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("COS client error: decoding response: %w", err)
	}
	return &out.JobsDetail, nil
}

func jobFromDetail(d *virusJobsDetail) *dto.ScanJob {
	job := &dto.ScanJob{
		JobID:        d.JobID,
		State:        d.State,
		CreationTime: d.CreationTime,
		Object:       d.Object,
		URL:          d.URL,
		Suggestion:   d.Suggestion,
		Code:         d.Code,
		Message:      d.Message,
	}
	for _, rec := range d.DetectDetail {
		job.DetectDetail = append(job.DetectDetail, dto.VirusRecord{
			VirusName: rec.VirusName,
			FileName:  rec.FileName,
		})
	}
	return job
}
