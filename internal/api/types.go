package api

import "github.com/leafsii/appconfig/pkg/appconfig"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RegisterRequest is the body of POST /v1/items/{name}.
type RegisterRequest struct {
	Value        any    `json:"value"`
	ByReference  *bool  `json:"by_reference,omitempty"`
	Overwrite    bool   `json:"overwrite"`
	Constant     bool   `json:"constant"`
	Timeout      int64  `json:"timeout"`
	BackingStore string `json:"backing_store,omitempty"`
}

func (r RegisterRequest) options() []appconfig.RegisterOption {
	var opts []appconfig.RegisterOption
	if r.ByReference != nil && !*r.ByReference {
		opts = append(opts, appconfig.Copied())
	}
	if r.Overwrite {
		opts = append(opts, appconfig.Overwrite())
	}
	if r.Constant {
		opts = append(opts, appconfig.Constant())
	}
	if r.Timeout != 0 {
		opts = append(opts, appconfig.WithTimeout(r.Timeout))
	}
	if r.BackingStore != "" {
		opts = append(opts, appconfig.WithBackingStoreName(r.BackingStore))
	}
	return opts
}

// ValueRequest is the body of PUT /v1/items/{name} and PUT /v1/env/{name}.
type ValueRequest struct {
	Value any `json:"value"`
}

type ValueResponse struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type ExistsResponse struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
}

type RegistrationResponse struct {
	Name         string                 `json:"name"`
	BackingStore appconfig.BackingStore `json:"backing_store"`
	ByReference  bool                   `json:"by_reference"`
	Constant     bool                   `json:"constant"`
	Timeout      int64                  `json:"timeout"`
}

func newRegistrationResponse(name string, m appconfig.Metadata) RegistrationResponse {
	return RegistrationResponse{
		Name:         name,
		BackingStore: m.BackingStore,
		ByReference:  m.ByReference(),
		Constant:     m.Constant,
		Timeout:      m.Timeout,
	}
}

type HealthResponse struct {
	Status string `json:"status"`
	Remote string `json:"remote"`
	Error  string `json:"error,omitempty"`
}
