// Package register performs Objective-C class registration for an image the
// system loader did not load.
//
// A Session carries the state of one load: which records became classes and
// metaclasses, the ordered correspondence between class-list slots and live
// classes, and the journal of every slot it rewrote. The loader drives the
// stages in this order, and the order matters:
//
//	selectors -> classes -> class refs -> superclass refs -> categories
//
// Class refs and superclass refs can only be rewritten once every class the
// image defines is live, and categories need live targets.
//
// # Ownership
//
// Registering a class hands its class record, metaclass record and their
// read-only data to the runtime. The live class handle is the address of the
// class record; nothing is copied. From then on the runtime may write to
// those records, and the image memory must stay mapped and unmodified by the
// caller until Session.Close has disposed every class. Close does not unmap
// the image.
//
// A Session is not safe for concurrent use, and the caller must keep other
// goroutines off the image memory while a stage runs.
package register
