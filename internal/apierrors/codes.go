// Package apierrors provides the JSON-RPC error code registry: a namespaced
// code (e.g. "plugin:missing_capability") mapped to a default message and the
// JSON-RPC error-code family it belongs to.
package apierrors

// Family partitions the JSON-RPC integer error-code space by concern, per
// the RPC boundary's documented code ranges.
type Family int

const (
	FamilyInternal Family = iota
	FamilyPlugin
	FamilyProvider
	FamilyCache
)

// rangeStart is the lowest integer code of each family's range. Register
// hands codes out from the family's highest code (-32000, -32010, ...)
// downward, one per entry, and panics once a family would pass this bound.
var rangeStart = map[Family]int{
	FamilyInternal: -32009,
	FamilyPlugin:   -32019,
	FamilyProvider: -32029,
	FamilyCache:    -32039,
}

// Core namespaced codes, registered at init.
const (
	CodeInternal          = "core:internal_error"
	CodeInvalidParams     = "core:invalid_params"
	CodeMethodNotFound    = "core:method_not_found"
	CodePluginNotFound    = "plugin:not_found"
	CodeMissingCapability = "plugin:missing_capability"
	CodePluginDisabled    = "plugin:disabled"
	CodeBytecodeInvalid   = "plugin:bytecode_invalid"
	CodeProviderNotFound  = "provider:not_found"
	CodeCapabilityUnsupported = "provider:capability_unsupported"
	CodeSyncFailed        = "provider:sync_failed"
	CodeCacheUnavailable  = "cache:unavailable"
	CodeItemNotFound      = "cache:item_not_found"
	CodeQueryFailed       = "cache:query_failed"
)

func init() {
	Registry.Register(ErrorCode{Code: CodeInternal, Message: "internal error", Family: FamilyInternal})
	Registry.Register(ErrorCode{Code: CodeInvalidParams, Message: "invalid params", Family: FamilyInternal})
	Registry.Register(ErrorCode{Code: CodeMethodNotFound, Message: "method not found", Family: FamilyInternal})

	Registry.Register(ErrorCode{Code: CodePluginNotFound, Message: "plugin not found", Family: FamilyPlugin})
	Registry.Register(ErrorCode{Code: CodeMissingCapability, Message: "missing capability", Family: FamilyPlugin})
	Registry.Register(ErrorCode{Code: CodePluginDisabled, Message: "plugin disabled", Family: FamilyPlugin})
	Registry.Register(ErrorCode{Code: CodeBytecodeInvalid, Message: "bytecode program invalid", Family: FamilyPlugin})

	Registry.Register(ErrorCode{Code: CodeProviderNotFound, Message: "provider not found", Family: FamilyProvider})
	Registry.Register(ErrorCode{Code: CodeCapabilityUnsupported, Message: "provider does not support this capability", Family: FamilyProvider})
	Registry.Register(ErrorCode{Code: CodeSyncFailed, Message: "sync failed", Family: FamilyProvider})

	Registry.Register(ErrorCode{Code: CodeCacheUnavailable, Message: "cache unavailable", Family: FamilyCache})
	Registry.Register(ErrorCode{Code: CodeItemNotFound, Message: "item not found", Family: FamilyCache})
	Registry.Register(ErrorCode{Code: CodeQueryFailed, Message: "query failed", Family: FamilyCache})
}
