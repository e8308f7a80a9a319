// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package ir

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseModule reads the minimal textual IR format used by the sample loader
// and by test fixtures, standing in for a real compiler front end.
//
// Format, one instruction per line:
//
//	<index>: <kind> [addr=<value>] [data=<value>] [result=<value>] [succs=<i>,<i>,...]
//
// kind is one of entry|exit|load|store|call|branch|other. <value> is either
// a bare integer ValueID or "-" for NoValue. The first non-blank,
// non-comment line is the function name, written as "function <name>". If
// succs is omitted, it defaults to [index+1], unless the instruction is the
// last one or has kind exit, in which case it defaults to none. Lines
// starting with '#' are comments; blank lines are ignored.
func ParseModule(r io.Reader) (Function, error) {
	fns, err := ParseModuleSet(r)
	if err != nil {
		return Function{}, err
	}
	if len(fns) != 1 {
		return Function{}, errors.Errorf("ir: expected exactly one function, got %d", len(fns))
	}
	return fns[0], nil
}

// ParseModuleSet reads a module containing one or more functions, each
// introduced by its own "function <name>" line. The parent driver's
// per-function worker pool calls this once to discover
// the function set, then re-invokes itself once per function with
// ParseFunction reading the same file.
func ParseModuleSet(r io.Reader) ([]Function, error) {
	scanner := bufio.NewScanner(r)
	var fns []Function
	var fn *Function
	lineNo := 0
	funcLineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "function" {
			if fn != nil {
				if err := finishFunction(fn, funcLineNo); err != nil {
					return nil, err
				}
				fns = append(fns, *fn)
			}
			fn = &Function{Name: fields[1]}
			funcLineNo = lineNo
			continue
		}
		if fn == nil {
			return nil, errors.Errorf("ir: line %d: expected \"function <name>\", got %q", lineNo, line)
		}
		inst, err := parseInstructionLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "ir: line %d", lineNo)
		}
		fn.Instructions = append(fn.Instructions, inst)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "ir: reading module")
	}
	if fn == nil {
		return nil, errors.New("ir: empty module")
	}
	if err := finishFunction(fn, funcLineNo); err != nil {
		return nil, err
	}
	fns = append(fns, *fn)
	return fns, nil
}

// ParseFunction reads a module and returns the single function named name,
// for the per-function worker re-invoked once per
// function in the module.
func ParseFunction(r io.Reader, name string) (Function, error) {
	fns, err := ParseModuleSet(r)
	if err != nil {
		return Function{}, err
	}
	for _, fn := range fns {
		if fn.Name == name {
			return fn, nil
		}
	}
	return Function{}, errors.Errorf("ir: no function named %q in module", name)
}

func finishFunction(fn *Function, lineNo int) error {
	fillDefaultSuccessors(fn)
	if err := fn.Validate(); err != nil {
		return errors.Wrapf(err, "ir: function %q starting at line %d", fn.Name, lineNo)
	}
	return nil
}

func fillDefaultSuccessors(fn *Function) {
	last := len(fn.Instructions) - 1
	for idx := range fn.Instructions {
		inst := &fn.Instructions[idx]
		if inst.Successors != nil {
			continue
		}
		if inst.Kind == KindExit || idx == last {
			continue
		}
		inst.Successors = []int{idx + 1}
	}
}

func parseInstructionLine(line string) (Instruction, error) {
	head, rest, ok := strings.Cut(line, ":")
	if !ok {
		return Instruction{}, errors.Errorf("missing ':' in %q", line)
	}
	idx, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return Instruction{}, errors.Wrapf(err, "bad index %q", head)
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return Instruction{}, errors.Errorf("missing kind in %q", line)
	}
	kind, err := parseKind(fields[0])
	if err != nil {
		return Instruction{}, err
	}
	inst := Instruction{Index: idx, Kind: kind}
	for _, field := range fields[1:] {
		key, val, ok := strings.Cut(field, "=")
		if !ok {
			return Instruction{}, errors.Errorf("bad attribute %q", field)
		}
		switch key {
		case "addr":
			v, err := parseValueID(val)
			if err != nil {
				return Instruction{}, err
			}
			inst.Address = v
		case "data":
			v, err := parseValueID(val)
			if err != nil {
				return Instruction{}, err
			}
			inst.Data = v
		case "result":
			v, err := parseValueID(val)
			if err != nil {
				return Instruction{}, err
			}
			inst.Result = v
		case "succs":
			for _, s := range strings.Split(val, ",") {
				succ, err := strconv.Atoi(strings.TrimSpace(s))
				if err != nil {
					return Instruction{}, errors.Wrapf(err, "bad successor %q", s)
				}
				inst.Successors = append(inst.Successors, succ)
			}
		case "name":
			inst.Upstream = val
		default:
			return Instruction{}, errors.Errorf("unknown attribute %q", key)
		}
	}
	return inst, nil
}

func parseValueID(s string) (ValueID, error) {
	if s == "-" {
		return NoValue, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return NoValue, fmt.Errorf("bad value id %q: %w", s, err)
	}
	return ValueID(n), nil
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "entry":
		return KindEntry, nil
	case "exit":
		return KindExit, nil
	case "load":
		return KindLoad, nil
	case "store":
		return KindStore, nil
	case "call":
		return KindCall, nil
	case "branch":
		return KindBranch, nil
	case "other":
		return KindOther, nil
	default:
		return 0, fmt.Errorf("unknown instruction kind %q", s)
	}
}
