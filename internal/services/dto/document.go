package dto

import "io"

// DocumentUpload is a file received from a multipart form.
type DocumentUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}
