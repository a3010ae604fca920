// Command archivecored runs the archive lifecycle HTTP service: the
// routing/QC queue, the archive organiser and batch merger, the
// storage and metadata layers, the authorisation core, and the
// integration hook dispatcher, wired together and served over HTTP.
package main

func main() {
	Execute()
}
