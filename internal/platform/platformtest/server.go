// Package platformtest 提供解密请求体的平台桩服务，供各包测试复用。
package platformtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"kevgir/internal/cipher"
	"kevgir/internal/platform"
)

// 与 platform.NewHTTPClient 的默认路径一致。
const (
	PathMenuDetails      = "/api/v1/menu/details"
	PathOptions          = "/api/v1/menu/options"
	PathProductStatus    = "/api/v1/product/status"
	PathOptionActivate   = "/api/v1/option-item/activate"
	PathOptionDeactivate = "/api/v1/option-item/deactivate"
)

// Call 记录一次被解密后的请求。
type Call struct {
	Path   string
	APIKey string
	Body   map[string]any
}

// Server 是内存中的平台实现。
type Server struct {
	*httptest.Server
	cipher *cipher.PayloadCipher

	mu       sync.Mutex
	menus    map[int64]platform.MenuDetails
	options  map[int64]platform.OptionDetails
	failures map[string][]int
	rejects  map[int64]platform.ErrorMessage
	calls    []Call
}

// New 启动桩服务，测试结束时自动关闭。
func New(t testing.TB, c *cipher.PayloadCipher) *Server {
	t.Helper()
	s := &Server{
		cipher:   c,
		menus:    make(map[int64]platform.MenuDetails),
		options:  make(map[int64]platform.OptionDetails),
		failures: make(map[string][]int),
		rejects:  make(map[int64]platform.ErrorMessage),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) SetMenu(storeID int64, menu platform.MenuDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menus[storeID] = menu
}

func (s *Server) SetOptions(menuID int64, opts platform.OptionDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options[menuID] = opts
}

// FailNext 让 path 的接下来几次请求依次返回给定状态码。
func (s *Server) FailNext(path string, codes ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], codes...)
}

// RejectProduct 让该商品的状态切换返回 success=false。
func (s *Server) RejectProduct(productID int64, msg platform.ErrorMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejects[productID] = msg
}

// Calls 返回 path 上的全部请求，path 为空时返回所有请求。
func (s *Server) Calls(path string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if path == "" || c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var env cipher.EncryptedBody
	if err := json.Unmarshal(raw, &env); err != nil {
		http.Error(w, "body must be {\"value\": ...}", http.StatusBadRequest)
		return
	}
	plain, err := s.cipher.Decrypt(env.Value)
	if err != nil {
		http.Error(w, "decrypt: "+err.Error(), http.StatusBadRequest)
		return
	}
	body := map[string]any{}
	_ = json.Unmarshal(plain, &body)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Path: r.URL.Path, APIKey: r.Header.Get("x-api-key"), Body: body})

	if queued := s.failures[r.URL.Path]; len(queued) > 0 {
		s.failures[r.URL.Path] = queued[1:]
		w.WriteHeader(queued[0])
		_, _ = w.Write([]byte(`{"error":"injected"}`))
		return
	}

	switch r.URL.Path {
	case PathMenuDetails:
		var p platform.MenuDetailsPayload
		_ = json.Unmarshal(plain, &p)
		writeJSON(w, platform.MenuDetailsResponse{Data: s.menus[p.StoreID]})
	case PathOptions:
		var p platform.OptionsPayload
		_ = json.Unmarshal(plain, &p)
		writeJSON(w, s.options[p.MenuID])
	case PathProductStatus:
		var p platform.ProductStatusPayload
		_ = json.Unmarshal(plain, &p)
		if msg, ok := s.rejects[p.ProductID]; ok {
			m := msg
			writeJSON(w, platform.ActivateResponse{Success: false, ErrorMessage: &m})
			return
		}
		s.setProductStatus(p.StoreID, p.ProductID, p.Status)
		writeJSON(w, platform.ActivateResponse{Success: true})
	case PathOptionActivate, PathOptionDeactivate:
		var p platform.OptionStatusPayload
		_ = json.Unmarshal(plain, &p)
		status := "passive"
		if r.URL.Path == PathOptionActivate {
			status = "active"
		}
		s.setOptionStatus(p.OptionItemID, status)
		writeJSON(w, platform.ActivateResponse{Success: true})
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) setProductStatus(storeID, productID int64, status string) {
	menu, ok := s.menus[storeID]
	if !ok {
		return
	}
	for hi := range menu.Headers {
		for ii := range menu.Headers[hi].Items {
			if menu.Headers[hi].Items[ii].ProductID == productID {
				menu.Headers[hi].Items[ii].Status = status
			}
		}
	}
}

func (s *Server) setOptionStatus(optionItemID int64, status string) {
	for _, opts := range s.options {
		for di := range opts.Data {
			headers := opts.Data[di].OptionsInfo.Headers
			for hi := range headers {
				for ii := range headers[hi].Items {
					if headers[hi].Items[ii].OptionItem.ID == optionItemID {
						headers[hi].Items[ii].OptionItem.Status = status
					}
				}
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
