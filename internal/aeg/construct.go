// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package aeg

import (
	"aegleak/internal/alias"
	"aegleak/internal/cfg"
	"aegleak/internal/dataflow"
	"aegleak/internal/ir"
	"aegleak/internal/smtctx"
	"aegleak/internal/taint"

	"github.com/pkg/errors"
)

// Deps bundles the three per-instruction dependency relations AEG lifts
// into edges between expanded nodes.
type Deps struct {
	Addr dataflow.BinaryInstRel
	Data dataflow.BinaryInstRel
	Ctrl dataflow.BinaryInstRel
}

// Options configures construction.
type Options struct {
	Oracle        alias.Oracle
	TaintStrategy taint.Strategy
}

// Construct runs the ordered construction pipeline documented inline below
// over an already-expanded speculative CFG, producing a fully-annotated
// AEG, adapted to this tool's simplified IR and solver.
func Construct(exp *cfg.Expanded, deps Deps, opts Options) (*AEG, error) {
	if opts.Oracle == nil {
		opts.Oracle = alias.DefaultOracle{}
	}
	if opts.TaintStrategy == nil {
		opts.TaintStrategy = taint.ArrayTaint{}
	}

	a := &AEG{
		Ctx:      smtctx.NewContext(),
		Expanded: exp,
		RobSize:  exp.RobSize,
		Nodes:    make([]Node, exp.NumNodes()),
		out:      map[EdgeKind]map[NodeRef][]NodeRef{},
		in:       map[EdgeKind]map[NodeRef][]NodeRef{},
		aliasOf:  map[pairKey]alias.Result{},
	}

	// Phase 1: nodes. One Node per expanded-CFG node, carrying its source
	// instruction and speculation depth.
	for i := range a.Nodes {
		ref := NodeRef(i)
		a.Nodes[i] = Node{Ref: ref, Source: exp.Source(ref), Depth: exp.Depth(ref)}
	}

	// Phase 2: arch/trans/exec/write/read. A node at depth 0 executes
	// architecturally unconditionally (this tool does not model whether an
	// architectural branch condition itself is reachable — that is a
	// front-end concern). A node at depth>0 executes only transiently, and
	// only if every node along its path from the most recent
	// mis-speculation origin also executes — approximated here as
	// "its direct predecessor executes", which composes correctly since
	// exec is defined bottom-up in a single forward pass over an
	// already-topologically-discovered node list (see cfg.Construct).
	for i := range a.Nodes {
		n := &a.Nodes[i]
		if n.Depth == 0 {
			n.Arch = smtctx.True()
			n.Trans = smtctx.False()
		} else {
			n.Arch = smtctx.False()
			preds := exp.Predecessors(n.Ref)
			if len(preds) == 0 {
				n.Trans = a.Ctx.FreshBool()
			} else {
				parts := make([]*smtctx.Expr, len(preds))
				for j, p := range preds {
					parts[j] = a.Nodes[p].Exec
				}
				n.Trans = smtctx.Or(parts...)
			}
		}
		n.Exec = smtctx.Or(n.Arch, n.Trans)
		inst := exp.Instruction(n.Ref)
		n.Write = smtctx.And(n.Exec, boolOf(inst.MayWrite()))
		n.Read = smtctx.And(n.Exec, boolOf(inst.MayRead()))
	}

	// Phase 3: po/tfo. Program-order edges come directly from the expanded
	// graph; an edge that crosses into a deeper speculation level is
	// additionally classified tfo (transient fetch order).
	for i := range a.Nodes {
		src := NodeRef(i)
		for _, dst := range exp.Successors(src) {
			a.addEdge(EdgePO, src, dst)
			if a.Nodes[dst].Depth > a.Nodes[src].Depth {
				a.addEdge(EdgeTFO, src, dst)
			}
		}
	}

	// Phase 3b: construct_arch_order/construct_xsaccess_order. The
	// architectural chain gets a sequential index; the whole expanded DAG
	// gets a topological index. Both are derived purely from the po/tfo
	// edges just built.
	if err := constructArchOrder(a); err != nil {
		return nil, errors.Wrap(err, "aeg: construction")
	}
	if err := constructXSAccessOrder(a); err != nil {
		return nil, errors.Wrap(err, "aeg: construction")
	}

	// Phase 4: addr_defs/addr_refs. Every memory-op node gets a fresh
	// symbolic address and data term; non-memory-op nodes leave them
	// unused.
	for i := range a.Nodes {
		n := &a.Nodes[i]
		inst := exp.Instruction(n.Ref)
		if inst.IsMemOp() {
			n.Addr = a.Ctx.FreshBV()
			n.Data = a.Ctx.FreshBV()
		}
	}

	// Phase 5: aliases. Every pair of memory-op nodes is classified by the
	// alias oracle, keyed by their *source* instruction and address
	// operand (not by speculation depth — two dynamic instances of the
	// same static access always have the oracle's answer for that static
	// pair). MustAlias/NoAlias become hard constraints; MayAlias is left
	// for the solver to decide per query.
	cons := newConstraints()
	memNodes := make([]NodeRef, 0, len(a.Nodes))
	for i := range a.Nodes {
		if exp.Instruction(NodeRef(i)).IsMemOp() {
			memNodes = append(memNodes, NodeRef(i))
		}
	}
	for pos, x := range memNodes {
		for _, y := range memNodes[pos+1:] {
			xInst := exp.Instruction(x)
			yInst := exp.Instruction(y)
			r := opts.Oracle.Query(
				alias.Loc{Inst: int(exp.Source(x)), Addr: xInst.Address},
				alias.Loc{Inst: int(exp.Source(y)), Addr: yInst.Address},
			)
			a.aliasOf[makePairKey(x, y)] = r
			switch r {
			case alias.MustAlias:
				cons.add("alias-must", a.AddrEq(x, y))
			case alias.NoAlias:
				cons.add("alias-no", smtctx.Not(a.AddrEq(x, y)))
			}
		}
	}

	// Phase 6: com. A communication edge connects every write/read pair of
	// memory-op nodes that may alias, regardless of program-order
	// direction — rf/co/fr (and their extended counterparts) are derived
	// from this edge set on demand rather than precomputed.
	for _, w := range memNodes {
		if !exp.Instruction(w).MayWrite() {
			continue
		}
		for _, r := range memNodes {
			if w == r || !exp.Instruction(r).MayRead() {
				continue
			}
			if a.MayAlias(w, r) {
				a.addEdge(EdgeCom, w, r)
			}
		}
	}

	// Phase 7: addr/data/ctrl edges, lifted from the per-instruction
	// dependency relations onto every matching pair of expanded nodes.
	liftRel(a, deps.Addr, EdgeAddr)
	liftRel(a, deps.Data, EdgeData)
	liftRel(a, deps.Ctrl, EdgeCtrl)

	// Phase 8: taint. Delegates to internal/taint via the AEGView
	// capability interface, never importing this package back.
	a.taint = opts.TaintStrategy.Compute(view{a}, a.Ctx)

	a.Constraints = cons
	a.Simplify()
	if err := cons.unsatisfiableTrivially(); err != nil {
		return nil, errors.Wrap(err, "aeg: construction")
	}
	return a, nil
}

// constructArchOrder assigns every depth-0 node a sequential index along
// the single architectural chain (CFG expansion always continues the
// architectural path through a branch's first successor, so the depth-0
// subgraph never merges or forks). Every node is first reset to -1, and
// transient nodes keep that value.
func constructArchOrder(a *AEG) error {
	for i := range a.Nodes {
		a.Nodes[i].ArchOrder = -1
	}
	visited := make(map[NodeRef]bool, len(a.Nodes))
	cur := a.Expanded.Entry
	order := 0
	for {
		if visited[cur] {
			return errors.Errorf("architectural chain revisits node %d", cur)
		}
		visited[cur] = true
		a.Nodes[cur].ArchOrder = order
		order++

		var next NodeRef
		found := false
		for _, succ := range a.Successors(EdgePO, cur) {
			if a.Nodes[succ].Depth == 0 {
				next, found = succ, true
				break
			}
		}
		if !found {
			return nil
		}
		cur = next
	}
}

// constructXSAccessOrder assigns every node (architectural and transient
// alike) a topological index over the po/tfo edges, via Kahn's algorithm.
// The enforced invariant is that every po edge's source gets a strictly
// smaller index than its destination; a cycle in the expanded graph — which
// should be structurally impossible, since expansion only ever grows the
// node list forward — is reported rather than silently producing a
// meaningless order.
func constructXSAccessOrder(a *AEG) error {
	indeg := make([]int, len(a.Nodes))
	for i := range a.Nodes {
		indeg[i] = len(a.in[EdgePO][NodeRef(i)])
	}
	queue := make([]NodeRef, 0, len(a.Nodes))
	for i, d := range indeg {
		if d == 0 {
			queue = append(queue, NodeRef(i))
		}
	}
	order := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		a.Nodes[n].XSAccessOrder = order
		order++
		for _, succ := range a.Successors(EdgePO, n) {
			indeg[succ]--
			if indeg[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}
	if order != len(a.Nodes) {
		return errors.New("expanded program-order graph contains a cycle")
	}
	return nil
}

func boolOf(b bool) *smtctx.Expr {
	if b {
		return smtctx.True()
	}
	return smtctx.False()
}

// liftRel adds an AEG edge of the given kind for every (srcNode, dstNode)
// pair whose underlying instructions appear as a (src, dst) pair in rel,
// across every speculation-depth instance of each.
func liftRel(a *AEG, rel dataflow.BinaryInstRel, kind EdgeKind) {
	bySource := make(map[int][]NodeRef, len(a.Nodes))
	for i := range a.Nodes {
		ref := NodeRef(i)
		src := int(a.Expanded.Source(ref))
		bySource[src] = append(bySource[src], ref)
	}
	rel.Pairs(func(dstInst, srcInst int) {
		for _, srcNode := range bySource[srcInst] {
			for _, dstNode := range bySource[dstInst] {
				a.addEdge(kind, srcNode, dstNode)
			}
		}
	})
}

// view adapts *AEG to taint.AEGView without taint importing this package.
type view struct{ a *AEG }

func (v view) NumNodes() int                  { return v.a.NumNodes() }
func (v view) Exec(n cfg.ExpandedRef) *smtctx.Expr { return v.a.Nodes[n].Exec }
func (v view) IsCallSite(n cfg.ExpandedRef) bool {
	return v.a.Expanded.Instruction(n).Kind == ir.KindCall
}
func (v view) AddrPredecessors(n cfg.ExpandedRef) []cfg.ExpandedRef {
	return v.a.Predecessors(EdgeAddr, n)
}
func (v view) DataPredecessors(n cfg.ExpandedRef) []cfg.ExpandedRef {
	return v.a.Predecessors(EdgeData, n)
}
func (v view) MemPredecessors(n cfg.ExpandedRef) []cfg.ExpandedRef {
	var out []cfg.ExpandedRef
	for _, w := range v.a.Predecessors(EdgeCom, n) {
		out = append(out, w)
	}
	return out
}

// Taint returns the tainted-ness predicate computed during construction.
func (a *AEG) Taint(n NodeRef) *smtctx.Expr {
	return a.taint.Flag(n)
}
