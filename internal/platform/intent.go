package platform

// Action names an OS-level operation requested through an Intent.
type Action string

const (
	ActionGetContent   Action = "get-content"
	ActionImageCapture Action = "image-capture"
	ActionView         Action = "view"
)

type Flag uint8

const (
	FlagNewTask Flag = 1 << iota
	FlagGrantRead
	FlagGrantWrite
)

// Intent describes a request handed to another process. Only the fields
// relevant to the Action are set.
type Intent struct {
	Action Action
	// Data is the target resource: a shared handle or a plain path, per the
	// FileAccess in effect.
	Data string
	// MIME is the primary content type; "*/*" when unrestricted.
	MIME string
	// ExtraMIMETypes narrows a get-content request.
	ExtraMIMETypes []string
	LocalOnly      bool
	// Output is where an image capture must write its result.
	Output string
	Flags  Flag
}

func (i Intent) Has(f Flag) bool {
	return i.Flags&f != 0
}

// FileSharer turns a local path into a reference another process may use.
type FileSharer interface {
	Share(path string, access FileAccess, grant Flag) (string, error)
}
