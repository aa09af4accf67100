package pluginapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Magic is the four-byte header every .fzb file starts with. The bytes that
// follow are a JSON-encoded Program — there is no separate binary encoding,
// matching what the original bytecode loader actually does (its
// parse_binary is parse_json under a different name). The magic byte check
// still gates the format: a file missing it is rejected before JSON
// decoding is even attempted.
var Magic = []byte("FZB\x01")

// Op is one stack-machine instruction opcode.
type Op string

const (
	OpLoadConst    Op = "load_const"
	OpLoadLocal    Op = "load_local"
	OpStoreLocal   Op = "store_local"
	OpLoadGlobal   Op = "load_global"
	OpStoreGlobal  Op = "store_global"
	OpCall         Op = "call"
	OpCallMethod   Op = "call_method"
	OpReturn       Op = "return"
	OpJump         Op = "jump"
	OpJumpIfFalse  Op = "jump_if_false"
	OpPop          Op = "pop"
	OpDup          Op = "dup"
	OpAdd          Op = "add"
	OpSub          Op = "sub"
	OpMul          Op = "mul"
	OpDiv          Op = "div"
	OpEq           Op = "eq"
	OpNe           Op = "ne"
	OpLt           Op = "lt"
	OpLe           Op = "le"
	OpGt           Op = "gt"
	OpGe           Op = "ge"
	OpNot          Op = "not"
	OpAnd          Op = "and"
	OpOr           Op = "or"
	OpMakeArray    Op = "make_array"
	OpMakeObject   Op = "make_object"
	OpGetProperty  Op = "get_property"
	OpSetProperty  Op = "set_property"
	OpGetIndex     Op = "get_index"
	OpSetIndex     Op = "set_index"
	OpAwait        Op = "await"
	OpNop          Op = "nop"
)

// Instruction is one stack-machine instruction. Operand meaning depends on
// Op: Index is used by LoadConst/LoadLocal/StoreLocal,
// Name by LoadGlobal/StoreGlobal/Call/CallMethod/GetProperty/SetProperty,
// Target by Jump/JumpIfFalse, Count by Call/CallMethod/MakeArray/MakeObject.
type Instruction struct {
	Op     Op     `json:"op"`
	Index  int    `json:"index,omitempty"`
	Name   string `json:"name,omitempty"`
	Target int    `json:"target,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// ConstKind tags a Constant's type.
type ConstKind string

const (
	ConstNull   ConstKind = "null"
	ConstBool   ConstKind = "bool"
	ConstInt    ConstKind = "int"
	ConstFloat  ConstKind = "float"
	ConstString ConstKind = "string"
)

// Constant is one entry of a Program's constant pool.
type Constant struct {
	Type  ConstKind `json:"type"`
	Value any       `json:"value,omitempty"`
}

// Function is one named, callable sequence of instructions.
type Function struct {
	Name         string        `json:"name"`
	Params       []string      `json:"params"`
	Instructions []Instruction `json:"instructions"`
	LocalCount   int           `json:"local_count"`
}

// ProgramMetadata describes the compiled program's provenance.
type ProgramMetadata struct {
	PluginID       string  `json:"plugin_id"`
	PluginVersion  string  `json:"plugin_version"`
	CompiledAt     *string `json:"compiled_at,omitempty"`
	CompilerVersion *string `json:"compiler_version,omitempty"`
}

// Program is a fully parsed bytecode payload (the part of a .fzb file after
// the magic header).
type Program struct {
	Version     int        `json:"version"`
	Metadata    ProgramMetadata `json:"metadata"`
	Constants   []Constant `json:"constants"`
	Functions   []Function `json:"functions"`
	EntryPoint  string     `json:"entry_point"`
}

// SupportedVersion is the only bytecode format version this runtime accepts.
const SupportedVersion = 1

// LoadProgram parses a .fzb file's full contents: checks the magic header,
// then decodes the remainder as JSON.
func LoadProgram(data []byte) (Program, error) {
	if len(data) < len(Magic) || !bytes.Equal(data[:len(Magic)], Magic) {
		return Program{}, fmt.Errorf("bytecode: missing or invalid magic header")
	}
	return ParseProgramJSON(data[len(Magic):])
}

// ParseProgramJSON decodes a Program from its JSON body (without the magic
// header) and validates it.
func ParseProgramJSON(data []byte) (Program, error) {
	var p Program
	if err := json.Unmarshal(data, &p); err != nil {
		return Program{}, fmt.Errorf("bytecode: parse json: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Program{}, err
	}
	return p, nil
}

// Validate checks the version and that EntryPoint names a declared function.
func (p Program) Validate() error {
	if p.Version != SupportedVersion {
		return fmt.Errorf("bytecode: unsupported version %d, want %d", p.Version, SupportedVersion)
	}
	if p.EntryPoint == "" {
		return fmt.Errorf("bytecode: entry_point is required")
	}
	for _, f := range p.Functions {
		if f.Name == p.EntryPoint {
			return nil
		}
	}
	return fmt.Errorf("bytecode: entry_point %q does not name a declared function", p.EntryPoint)
}

// Encode serializes a Program back into a full .fzb file (magic + JSON),
// used by hubctl's plugin scaffold command.
func (p Program) Encode() ([]byte, error) {
	body, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, Magic...), body...), nil
}
