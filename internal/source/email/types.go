package email

// Headers holds the decoded header fields the classifier and presenters
// need from a fetched message.
type Headers struct {
	// From is the decoded From header, display name and address as sent.
	From string

	// Subject is the decoded Subject header, empty when absent.
	Subject string
}
