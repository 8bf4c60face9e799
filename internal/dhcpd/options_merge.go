package dhcpd

// MessageInterceptor allows an embedder to add further options to a reply
// after the configured options merge has run, per spec.md §4.7.
type MessageInterceptor interface {
	Apply(request, response *DhcpMessage)
}

// applyConfiguredOptions implements spec.md §4.7: for each (mode, option) in
// cfg.Options, the option is appended to resp if resp doesn't already carry
// that code and either mode is Force or the client requested the code in
// option 55.
func applyConfiguredOptions(cfg *Configuration, req, resp *DhcpMessage) {
	var prl ParameterRequestList
	if o, ok := req.Option(OptParameterRequestList); ok {
		if p, ok := o.(ParameterRequestList); ok {
			prl = p
		}
	}

	for _, entry := range cfg.Options {
		code := entry.Option.Code()
		if _, already := resp.Option(code); already {
			continue
		}

		if entry.Mode == ModeForce || prl.Contains(code) {
			resp.Options = append(resp.Options, entry.Option)
		}
	}
}

// applyInterceptors runs each interceptor in order, after the configured
// options merge.
func applyInterceptors(interceptors []MessageInterceptor, req, resp *DhcpMessage) {
	for _, ic := range interceptors {
		ic.Apply(req, resp)
	}
}
