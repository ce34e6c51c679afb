package client

import "net/http"

func requestHeaders(extra http.Header) http.Header {
	h := make(http.Header)
	for k, vv := range extra {
		for _, v := range vv {
			h.Add(k, v)
		}
	}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Del("Accept-Encoding")
	return h
}
