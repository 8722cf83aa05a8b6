package domain

// Attachment is an image supplied with an update, either as an already hosted URL or as a file
// that still has to be uploaded to the CRM.
type Attachment struct {
	URL  string
	File *FileUpload
}

// FileUpload is a file received from the caller.
type FileUpload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Present reports whether the attachment carries anything.
func (a *Attachment) Present() bool {
	return a != nil && (a.URL != "" || a.File != nil)
}
