package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/unkn0wn-root/apidebug/internal/debugreq"
	"github.com/unkn0wn-root/apidebug/internal/errdef"
)

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

func (c *Client) prepareHTTPRequest(
	ctx context.Context,
	req *debugreq.Request,
	opts Options,
) (*http.Request, error) {
	if req == nil {
		return nil, errdef.New(errdef.CodeRequest, "request is nil")
	}

	target, err := resolveURL(opts.BaseURL, req.Path)
	if err != nil {
		return nil, err
	}

	params := debugreq.BuildParams(req.Params)
	bodyType := req.EffectiveBodyType()

	var (
		body        io.Reader
		contentType string
	)
	switch bodyType {
	case debugreq.BodyNone:
	case debugreq.BodyJSON:
		if req.JSONBody != "" {
			body = strings.NewReader(req.JSONBody)
			contentType = contentTypeJSON
		}
	case debugreq.BodyForm:
		if params.Len() > 0 {
			body = strings.NewReader(params.URLValues().Encode())
			contentType = contentTypeForm
		}
	default:
		return nil, errdef.New(errdef.CodeRequest, "unsupported body type %q", string(bodyType))
	}

	if bodyType != debugreq.BodyForm && params.Len() > 0 {
		mergeQuery(target, params.URLValues())
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.NormalizedMethod(), target.String(), body)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeRequest, err, "build request")
	}

	debugreq.BuildHeaders(req.Headers).ApplyHeaders(httpReq.Header)
	if contentType != "" && !req.HasHeader("Content-Type") {
		httpReq.Header.Set("Content-Type", contentType)
	}
	return httpReq, nil
}

// resolveURL joins a relative path onto base. Absolute paths are used as is.
func resolveURL(base, path string) (*url.URL, error) {
	path = strings.TrimSpace(path)
	if path == "" && strings.TrimSpace(base) == "" {
		return nil, errdef.New(errdef.CodeRequest, "request url is empty")
	}

	ref, err := url.Parse(path)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeRequest, err, "parse path %q", path)
	}
	if ref.IsAbs() {
		return ref, nil
	}

	base = strings.TrimSpace(base)
	if base == "" {
		return nil, errdef.New(errdef.CodeRequest, "relative path %q needs a base url", path)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeRequest, err, "parse base url %q", base)
	}
	if !baseURL.IsAbs() {
		return nil, errdef.New(errdef.CodeRequest, "base url %q is not absolute", base)
	}

	joined := *baseURL
	if ref.Path != "" {
		joined.Path = strings.TrimRight(baseURL.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
		joined.RawPath = ""
	}
	joined.RawQuery = baseURL.RawQuery
	mergeQuery(&joined, ref.Query())
	joined.Fragment = ""
	return &joined, nil
}

func mergeQuery(u *url.URL, extra url.Values) {
	if len(extra) == 0 {
		return
	}
	q := u.Query()
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
}

type reqMeta struct {
	headers http.Header
	method  string
	host    string
	length  int64
}

func captureReqMeta(sent *http.Request, resp *http.Response) reqMeta {
	var h http.Header

	// Prefer the final request attached to the response, since redirects and transports can mutate it.
	reqForMeta := sent
	if resp != nil && resp.Request != nil {
		reqForMeta = resp.Request
	}

	if reqForMeta != nil && reqForMeta.Header != nil {
		h = reqForMeta.Header.Clone()
	} else if sent != nil && sent.Header != nil {
		h = sent.Header.Clone()
	}
	if h == nil {
		h = make(http.Header)
	}

	meta := reqMeta{headers: h}
	if reqForMeta != nil {
		meta.host = reqForMeta.Host
		if strings.TrimSpace(meta.host) == "" && reqForMeta.URL != nil {
			meta.host = reqForMeta.URL.Host
		}
		meta.length = reqForMeta.ContentLength
		meta.method = reqForMeta.Method
	}
	return meta
}
