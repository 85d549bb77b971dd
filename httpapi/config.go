package httpapi

// Config defines HTTP command surface settings.
type Config struct {
	Addr     string
	BasePath string
}
