// Package contentstore uploads certificate artifacts to a Pinata-style IPFS
// pinning service. Pins use CID v1, so storage is content-addressed: the same
// bytes always map to the same URI. Nothing is ever unpinned or overwritten.
package contentstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"campuscert/certerr"
	"campuscert/metrics"

	"github.com/go-resty/resty/v2"
)

const (
	pinJSONPath = "/pinning/pinJSONToIPFS"
	pinFilePath = "/pinning/pinFileToIPFS"
	cidVersion  = 1
)

// Config holds the pinning service settings.
type Config struct {
	APIURL     string
	JWT        string
	GatewayURL string
	Timeout    time.Duration
}

// Meta labels a pinned object.
type Meta struct {
	Name      string            `json:"name"`
	KeyValues map[string]string `json:"keyvalues,omitempty"`
}

type pinOptions struct {
	CIDVersion int `json:"cidVersion"`
}

type pinJSONBody struct {
	Content  interface{} `json:"pinataContent"`
	Metadata Meta        `json:"pinataMetadata"`
	Options  pinOptions  `json:"pinataOptions"`
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// Client is safe for concurrent use.
type Client struct {
	http       *resty.Client
	jwt        string
	gatewayURL string
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
		SetTimeout(timeout).
		SetAuthToken(cfg.JWT)
	return &Client{
		http:       rc,
		jwt:        cfg.JWT,
		gatewayURL: strings.TrimRight(cfg.GatewayURL, "/"),
	}
}

// PutJSON pins payload as JSON and returns its gateway URI.
func (c *Client) PutJSON(ctx context.Context, payload interface{}, meta Meta) (string, error) {
	const op = "contentstore.PutJSON"
	if c.jwt == "" {
		return "", certerr.Newf(certerr.StoreRejected, op, "pinning credential not configured")
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(pinJSONBody{
			Content:  payload,
			Metadata: meta,
			Options:  pinOptions{CIDVersion: cidVersion},
		}).
		SetResult(&pinResponse{}).
		Post(pinJSONPath)
	metrics.StoreUploadDuration.WithLabelValues("json").Observe(time.Since(start).Seconds())

	return c.uriFrom(op, resp, err)
}

// PutBinary pins the bytes read from r as fileName. The body is streamed from
// r; its size does not need to be known.
func (c *Client) PutBinary(ctx context.Context, r io.Reader, fileName string, meta Meta) (string, error) {
	const op = "contentstore.PutBinary"
	if c.jwt == "" {
		return "", certerr.Newf(certerr.StoreRejected, op, "pinning credential not configured")
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", certerr.New(certerr.StoreRejected, op, err)
	}
	optsJSON, _ := json.Marshal(pinOptions{CIDVersion: cidVersion})

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("file", fileName, contentTypeFor(fileName), r).
		SetMultipartFormData(map[string]string{
			"pinataMetadata": string(metaJSON),
			"pinataOptions":  string(optsJSON),
		}).
		SetResult(&pinResponse{}).
		Post(pinFilePath)
	metrics.StoreUploadDuration.WithLabelValues("binary").Observe(time.Since(start).Seconds())

	return c.uriFrom(op, resp, err)
}

// URIFor maps a content identifier to its public fetch URL.
func (c *Client) URIFor(cid string) string {
	return c.gatewayURL + "/ipfs/" + cid
}

func (c *Client) uriFrom(op string, resp *resty.Response, err error) (string, error) {
	if err != nil {
		return "", certerr.New(certerr.StoreUnreachable, op, err)
	}
	status := resp.StatusCode()
	switch {
	case status >= http.StatusInternalServerError:
		return "", certerr.Newf(certerr.StoreUnreachable, op, "pinning service returned %d: %s", status, truncate(resp.String()))
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return "", certerr.Newf(certerr.StoreUnreachable, op, "pinning service returned %d", status)
	case resp.IsError():
		return "", certerr.Newf(certerr.StoreRejected, op, "pinning service returned %d: %s", status, truncate(resp.String()))
	}

	pinned, ok := resp.Result().(*pinResponse)
	if !ok || pinned.IpfsHash == "" {
		return "", certerr.Newf(certerr.StoreRejected, op, "response carried no IpfsHash")
	}
	return c.URIFor(pinned.IpfsHash), nil
}

func contentTypeFor(fileName string) string {
	switch {
	case strings.HasSuffix(fileName, ".png"):
		return "image/png"
	case strings.HasSuffix(fileName, ".json"):
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

func truncate(s string) string {
	const max = 256
	if len(s) <= max {
		return s
	}
	return fmt.Sprintf("%s...(%d bytes)", s[:max], len(s))
}
