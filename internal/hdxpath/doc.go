// Package hdxpath decomposes facility paths into category/name pairs.
//
// Every path accepted by hdx lives under one canonical root. Raw inputs may
// arrive through a shared mount (/mnt/x3/hdx/projects/...) or a facility alias;
// the parser folds them onto the canonical root before walking the remaining
// segments two at a time. An odd trailing segment is the file or frame-sequence
// name of the entity.
package hdxpath
