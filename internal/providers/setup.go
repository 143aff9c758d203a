package providers

// Builtin returns every built-in provider
func Builtin() []Provider {
	return []Provider{
		NewBilibili(),
		NewJuejin(),
		NewV2EX(),
		NewWeibo(),
		NewZhihu(),
	}
}

// Setup creates a registry with all built-in providers
func Setup() *Registry {
	registry := NewRegistry()
	for _, p := range Builtin() {
		registry.Register(p)
	}
	return registry
}
