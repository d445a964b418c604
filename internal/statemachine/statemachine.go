// Package statemachine interprets the declarative state machines embedded in
// contract objectives and scoring modules. Evaluation is a pure function over
// (definition, state, context, event): it performs no I/O and never mutates
// the shared definition. An absent context in the result means "no change"
// and callers must preserve that sentinel.
package statemachine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"masquerade/internal/models"
)

// Options carries the per-evaluation inputs that are not part of the stored
// context.
type Options struct {
	EventName    string
	CurrentState string
	Timestamp    float64
	ContractID   string

	// Timers is shared across evaluations of the same machine so $after
	// conditions can span events. Nil disables time-based transitions.
	Timers *[]models.Timer
}

// Result is the outcome of one evaluation. A nil Context means the evaluator
// made no change; callers must not replace their stored context in that case.
type Result struct {
	State   string
	Context map[string]any
}

// Evaluate runs the machine once against a single event.
func Evaluate(definition map[string]any, state string, context map[string]any, eventValue any, opts Options) (Result, error) {
	if definition == nil {
		return Result{State: state}, nil
	}
	states, ok := definition["States"].(map[string]any)
	if !ok {
		return Result{State: state}, fmt.Errorf("definition has no States object")
	}
	handlers, ok := states[state].(map[string]any)
	if !ok {
		return Result{State: state}, nil
	}
	candidates, ok := handlers[opts.EventName]
	if !ok {
		return Result{State: state}, nil
	}

	copied, _ := deepCopy(context).(map[string]any)
	if copied == nil {
		copied = make(map[string]any)
	}
	ev := &evaluation{
		context: copied,
		value:   eventValue,
		opts:    opts,
	}

	newState := state
	for i, transition := range asSlice(candidates) {
		node, ok := transition.(map[string]any)
		if !ok {
			continue
		}
		ev.condPath = fmt.Sprintf("%s.%s[%d]", state, opts.EventName, i)
		if !ev.check(node["Condition"]) {
			continue
		}
		ev.apply(node["Actions"])
		ev.mutated = true
		if target, ok := node["Transition"].(string); ok && target != "" {
			newState = target
			break
		}
	}

	if !ev.mutated {
		return Result{State: state}, nil
	}
	return Result{State: newState, Context: ev.context}, nil
}

type evaluation struct {
	context  map[string]any
	value    any
	opts     Options
	mutated  bool
	condPath string
}

// check evaluates a condition node. A nil condition always passes.
func (e *evaluation) check(cond any) bool {
	switch c := cond.(type) {
	case nil:
		return true
	case bool:
		return c
	case map[string]any:
		for op, arg := range c {
			if !e.checkOp(op, arg) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (e *evaluation) checkOp(op string, arg any) bool {
	switch op {
	case "$eq":
		a, b, ok := e.pair(arg)
		if !ok {
			return false
		}
		return looseEqual(a, b)
	case "$not":
		return !e.check(arg)
	case "$and":
		for _, sub := range asSlice(arg) {
			if !e.check(sub) {
				return false
			}
		}
		return true
	case "$or":
		for _, sub := range asSlice(arg) {
			if e.check(sub) {
				return true
			}
		}
		return false
	case "$gt", "$ge", "$lt", "$le":
		a, b, ok := e.pair(arg)
		if !ok {
			return false
		}
		x, okx := toFloat(a)
		y, oky := toFloat(b)
		if !okx || !oky {
			return false
		}
		switch op {
		case "$gt":
			return x > y
		case "$ge":
			return x >= y
		case "$lt":
			return x < y
		default:
			return x <= y
		}
	case "$inarray", "$contains":
		a, b, ok := e.pair(arg)
		if !ok {
			return false
		}
		if s, isStr := a.(string); isStr && op == "$contains" {
			sub, _ := b.(string)
			return strings.Contains(s, sub)
		}
		for _, item := range asSlice(a) {
			if looseEqual(item, b) {
				return true
			}
		}
		return false
	case "$after":
		return e.checkAfter(arg)
	default:
		return false
	}
}

// checkAfter implements the shared-timer condition: the first evaluation of a
// node registers a deadline, later evaluations pass once the mission clock
// reaches it.
func (e *evaluation) checkAfter(arg any) bool {
	if e.opts.Timers == nil {
		return false
	}
	seconds, ok := toFloat(e.resolve(arg))
	if !ok {
		return false
	}
	timers := *e.opts.Timers
	for _, t := range timers {
		if t.Path == e.condPath {
			return e.opts.Timestamp >= t.EndTime
		}
	}
	*e.opts.Timers = append(timers, models.Timer{
		Path:    e.condPath,
		EndTime: e.opts.Timestamp + seconds,
	})
	return false
}

// apply runs an action node (a single op map or a list of them) against the
// working context copy.
func (e *evaluation) apply(actions any) {
	for _, action := range asSlice(actions) {
		node, ok := action.(map[string]any)
		if !ok {
			continue
		}
		for op, arg := range node {
			e.applyOp(op, arg)
		}
	}
}

func (e *evaluation) applyOp(op string, arg any) {
	switch op {
	case "$set":
		target, value, ok := e.targetPair(arg)
		if !ok {
			return
		}
		e.setContext(target, value)
	case "$inc", "$dec":
		target, args := targetAndArgs(arg)
		amount := 1.0
		if len(args) > 0 {
			if v, ok := toFloat(e.resolve(args[0])); ok {
				amount = v
			}
		}
		current, _ := toFloat(e.resolve(target))
		if op == "$dec" {
			amount = -amount
		}
		e.setContext(target, current+amount)
	case "$mul":
		target, value, ok := e.targetPair(arg)
		if !ok {
			return
		}
		current, _ := toFloat(e.resolve(target))
		factor, _ := toFloat(value)
		e.setContext(target, current*factor)
	case "$push", "$pushunique":
		target, value, ok := e.targetPair(arg)
		if !ok {
			return
		}
		list := asSlice(e.resolve(target))
		if op == "$pushunique" {
			for _, item := range list {
				if looseEqual(item, value) {
					return
				}
			}
		}
		e.setContext(target, append(append([]any{}, list...), value))
	case "$remove":
		target, value, ok := e.targetPair(arg)
		if !ok {
			return
		}
		var kept []any
		for _, item := range asSlice(e.resolve(target)) {
			if !looseEqual(item, value) {
				kept = append(kept, item)
			}
		}
		e.setContext(target, kept)
	case "$reset":
		ref, _ := arg.(string)
		if ref != "" {
			e.setContext(ref, []any{})
		}
	}
}

// pair resolves a two-element operand list.
func (e *evaluation) pair(arg any) (any, any, bool) {
	items := asSlice(arg)
	if len(items) != 2 {
		return nil, nil, false
	}
	return e.resolve(items[0]), e.resolve(items[1]), true
}

// targetPair splits an action operand into an unresolved target reference and
// a resolved value.
func (e *evaluation) targetPair(arg any) (string, any, bool) {
	items := asSlice(arg)
	if len(items) != 2 {
		return "", nil, false
	}
	target, ok := items[0].(string)
	if !ok {
		return "", nil, false
	}
	return target, e.resolve(items[1]), true
}

func targetAndArgs(arg any) (string, []any) {
	if s, ok := arg.(string); ok {
		return s, nil
	}
	items := asSlice(arg)
	if len(items) == 0 {
		return "", nil
	}
	target, _ := items[0].(string)
	return target, items[1:]
}

// resolve dereferences $-prefixed variable paths. "$Value.X" reads from the
// event payload, "$Timestamp"/"$Name"/"$ContractId"/"$CurrentState" from the
// evaluation options, anything else from the context. Non-string and
// non-$-prefixed operands are literals.
func (e *evaluation) resolve(operand any) any {
	ref, ok := operand.(string)
	if !ok || !strings.HasPrefix(ref, "$") {
		return operand
	}
	path := strings.TrimPrefix(ref, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return e.context
	}
	segments := strings.Split(path, ".")
	var root any
	switch segments[0] {
	case "Value":
		root = e.value
		segments = segments[1:]
	case "Timestamp":
		return e.opts.Timestamp
	case "Name":
		return e.opts.EventName
	case "ContractId":
		return e.opts.ContractID
	case "CurrentState":
		return e.opts.CurrentState
	default:
		root = e.context
	}
	return walk(root, segments)
}

// setContext writes a value at a $-path inside the context, creating
// intermediate maps as needed.
func (e *evaluation) setContext(ref string, value any) {
	path := strings.TrimPrefix(ref, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return
	}
	segments := strings.Split(path, ".")
	node := e.context
	for _, seg := range segments[:len(segments)-1] {
		next, ok := node[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			node[seg] = next
		}
		node = next
	}
	node[segments[len(segments)-1]] = value
}

func walk(node any, segments []string) any {
	for _, seg := range segments {
		switch n := node.(type) {
		case map[string]any:
			node = n[seg]
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(n) {
				return nil
			}
			node = n[idx]
		default:
			return nil
		}
	}
	return node
}

// asSlice normalizes "one or many" nodes: definitions freely use a single
// object where a list is allowed.
func asSlice(v any) []any {
	switch s := v.(type) {
	case nil:
		return nil
	case []any:
		return s
	default:
		return []any{v}
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// looseEqual compares with numeric normalization so 2 == 2.0 across decoded
// JSON inputs.
func looseEqual(a, b any) bool {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return x == y
		}
		return false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return false
	}
}

// deepCopy clones decoded-JSON shaped data (maps, slices, scalars).
func deepCopy(v any) any {
	switch n := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, item := range n {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, item := range n {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}
