package api

const ApiVersion_1_0 = "v1"

// ServerVersion is overridden at build time with -ldflags.
var ServerVersion = "0.1.0"

type GetVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}
