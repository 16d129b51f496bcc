package sheets

import "errors"

// Sentinel kinds for sheet errors.
var (
	ErrUnsupportedFile = errors.New("unsupported sheet file")
	ErrSheetNotFound   = errors.New("sheet not found")
	ErrEmptySheet      = errors.New("sheet is empty")
	ErrRemote          = errors.New("spreadsheet api error")
)
