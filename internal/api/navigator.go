package api

//go:generate mockgen -source=navigator.go -destination=apimock/mock_navigator.go -package=apimock

// Navigator sends the user to another screen. The client uses it to force
// re-authentication once a session can no longer be refreshed.
type Navigator interface {
	Redirect(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

// Redirect implements Navigator.
func (f NavigatorFunc) Redirect(route string) {
	f(route)
}

type noopNavigator struct{}

func (noopNavigator) Redirect(string) {}
