// Package callbacks rewrites function-pointer parameters so callbacks can be
// invoked across the trust boundary through opaque handles.
package callbacks

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/partition"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/utils"
)

const (
	secureHandlerPrefix   = "secure_callback_handler_"
	insecureHandlerPrefix = "insecure_callback_handler_"
)

// HandlerPair is the secure and insecure handler of one callback signature.
type HandlerPair struct {
	Signature string
	Secure    program.FuncID
	Insecure  program.FuncID
}

// For returns the handler of the given side.
func (h HandlerPair) For(secure bool) program.FuncID {
	if secure {
		return h.Secure
	}
	return h.Insecure
}

// RewrittenParam is a callback parameter now carrying a handle.
type RewrittenParam struct {
	Func    program.FuncID
	Param   int
	Handler program.FuncID
}

// HandleArg is an argument converted from a function address to a handle.
type HandleArg struct {
	CallSite program.CallSiteID
	Arg      int
}

// RewriteReport lists every change made to the program.
type RewriteReport struct {
	Handlers        []HandlerPair
	Params          []RewrittenParam
	RedirectedCalls []program.CallSiteID
	HandleArgs      []HandleArg
}

// Rewriter performs the callback boundary rewrite on a program.
type Rewriter struct {
	prog   *program.Program
	logger *logrus.Logger
}

// NewRewriter creates a rewriter for prog.
func NewRewriter(logger *logrus.Logger, prog *program.Program) *Rewriter {
	return &Rewriter{prog: prog, logger: utils.LoggerOrDiscard(logger)}
}

type callbackParam struct {
	fn    program.FuncID
	index int
	sig   *program.Signature
}

// Rewrite replaces every function-pointer parameter of a defined function
// with a handle, routes calls through that parameter to the handler of the
// function's side and marks the matching argument at every caller. One
// handler pair is synthesized per distinct callback signature; handlers join
// the partition of their side.
func (r *Rewriter) Rewrite(secure, insecure *partition.Partition) *RewriteReport {
	report := &RewriteReport{}
	params := r.collect()
	if len(params) == 0 {
		r.logger.Debug("No callback parameters to rewrite")
		return report
	}

	pairs := make(map[string]HandlerPair)
	for _, cp := range params {
		key := cp.sig.Key()
		pair, ok := pairs[key]
		if !ok {
			pair = r.synthesize(len(report.Handlers), cp.sig)
			pairs[key] = pair
			report.Handlers = append(report.Handlers, pair)
			secure.Add(pair.Secure)
			insecure.Add(pair.Insecure)
		}

		handler := pair.For(secure.Contains(cp.fn))
		r.prog.SetParamType(cp.fn, cp.index, program.Handle)
		report.Params = append(report.Params, RewrittenParam{Func: cp.fn, Param: cp.index, Handler: handler})

		formal, _ := r.prog.FormalArg(cp.fn, cp.index)
		for _, site := range r.prog.CallSitesIn(cp.fn) {
			if site.CalleeParam != cp.index {
				continue
			}
			r.prog.RedirectCall(site.ID, handler, formal)
			report.RedirectedCalls = append(report.RedirectedCalls, site.ID)
		}
		for _, site := range r.prog.CallSitesOf(cp.fn) {
			r.prog.MarkHandleArg(site.ID, cp.index)
			report.HandleArgs = append(report.HandleArgs, HandleArg{CallSite: site.ID, Arg: cp.index})
		}

		r.logger.WithFields(logrus.Fields{
			"function": r.prog.Name(cp.fn),
			"param":    cp.index,
			"handler":  r.prog.Name(handler),
		}).Debug("Callback parameter rewritten")
	}

	secure.RefreshInterfaces()
	insecure.RefreshInterfaces()

	r.logger.WithFields(logrus.Fields{
		"handlers":  len(report.Handlers),
		"params":    len(report.Params),
		"redirects": len(report.RedirectedCalls),
	}).Info("Callback boundary rewrite complete")
	return report
}

// collect returns the function-pointer parameters of defined functions in
// function and parameter order. Handlers are never rewritten.
func (r *Rewriter) collect() []callbackParam {
	var result []callbackParam
	for _, f := range r.prog.Defined() {
		fn := r.prog.Function(f)
		if fn.Handler != nil {
			continue
		}
		for i, p := range fn.Params {
			if p.Type.IsFunction() && p.Type.Signature != nil {
				result = append(result, callbackParam{fn: f, index: i, sig: p.Type.Signature})
			}
		}
	}
	return result
}

// synthesize adds the handler pair number n for sig.
func (r *Rewriter) synthesize(n int, sig *program.Signature) HandlerPair {
	params := make([]program.Param, 0, len(sig.Params)+1)
	params = append(params, program.Param{Name: "handle", Type: program.Handle})
	for i, t := range sig.Params {
		params = append(params, program.Param{Name: fmt.Sprintf("arg%d", i), Type: t})
	}

	add := func(name string, isSecure bool) program.FuncID {
		return r.prog.AddFunction(program.Function{
			Name:    name,
			Params:  append([]program.Param(nil), params...),
			Result:  sig.Result,
			Handler: &program.HandlerBody{Secure: isSecure, Signature: sig},
		})
	}
	s := add(fmt.Sprintf("%s%d", secureHandlerPrefix, n), true)
	in := add(fmt.Sprintf("%s%d", insecureHandlerPrefix, n), false)
	r.prog.Function(s).Handler.Peer = in
	r.prog.Function(in).Handler.Peer = s

	r.logger.WithFields(logrus.Fields{
		"signature": sig.String(),
		"secure":    r.prog.Name(s),
		"insecure":  r.prog.Name(in),
	}).Debug("Callback handlers synthesized")
	return HandlerPair{Signature: sig.String(), Secure: s, Insecure: in}
}
