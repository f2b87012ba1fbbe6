// Package item defines the unit of work flowing through the acquisition pipeline.
package item

// WorkItem describes one audiobook acquisition from enqueue through final
// placement. It lives only as long as its monitor; persistence of queue
// state belongs to the download engine.
type WorkItem struct {
	ID             string // external item id, stable across all collaborators
	Title          string
	EncryptedPath  string // staging path of the downloaded, still-encrypted file
	DecryptedPath  string // staging path for the transcoded output
	DestinationDir string // user-chosen library root
	Key            string // decryption key material
	IV             string // decryption initialization vector
	TotalBytes     int64  // expected size, used for progress reporting
}
