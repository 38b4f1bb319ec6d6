// Copyright 2025 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ilist provides an intrusive doubly-linked list.  The link fields
// live inside the element itself, declared by embedding an Entry, so the list
// never allocates; all it ever does is rewire links.  This makes it suitable
// for hot paths that must not touch the heap, and for elements that move
// between lists without changing identity.
//
// A typical element declares the links by embedding:
//
//	type request struct {
//		ilist.Entry[*request]
//		...
//	}
//
// and is kept in an ilist.List[*request].  An element may be in at most one
// list at a time.
package ilist

// A Linker provides access to the next/prev links embedded in an element.
// Embedding an Entry[T] in the element type implements it.
type Linker[T any] interface {
	Next() T
	Prev() T
	SetNext(T)
	SetPrev(T)
}

// Elem is the constraint satisfied by list elements: a comparable (pointer)
// type carrying its own links.
type Elem[T any] interface {
	comparable
	Linker[T]
}

// Entry is a link pair to be embedded in a list element.  Its zero value is
// an unlinked entry.
type Entry[T any] struct {
	next T
	prev T
}

// Next returns the element following this one in its list, or the zero value
// of T at the back of the list.
func (e *Entry[T]) Next() T { return e.next }

// Prev returns the element preceding this one in its list, or the zero value
// of T at the front of the list.
func (e *Entry[T]) Prev() T { return e.prev }

// SetNext sets the element following this one.  For use by List only.
func (e *Entry[T]) SetNext(v T) { e.next = v }

// SetPrev sets the element preceding this one.  For use by List only.
func (e *Entry[T]) SetPrev(v T) { e.prev = v }

// A List is an intrusive doubly-linked list.  The zero value is an empty
// list ready for use.  List performs no synchronization; callers that share
// a list across goroutines must provide their own locking.
//
// All operations are O(1) and allocation free unless noted otherwise.
type List[T Elem[T]] struct {
	head T
	tail T
}

// Empty returns whether the list has no elements.
func (l *List[T]) Empty() bool {
	var zero T
	return l.head == zero
}

// Front returns the first element of the list, or the zero value of T if the
// list is empty.
func (l *List[T]) Front() T { return l.head }

// Back returns the last element of the list, or the zero value of T if the
// list is empty.
func (l *List[T]) Back() T { return l.tail }

// Next returns the element after e, or the zero value of T if e is the last
// element.  e must be linked.
func (l *List[T]) Next(e T) T { return e.Next() }

// Prev returns the element before e, or the zero value of T if e is the
// first element.  e must be linked.
func (l *List[T]) Prev(e T) T { return e.Prev() }

// PushFront inserts e at the front of the list.
// Requires that e is not currently in a list.
func (l *List[T]) PushFront(e T) {
	var zero T
	e.SetNext(l.head)
	e.SetPrev(zero)
	if l.head != zero {
		l.head.SetPrev(e)
	} else {
		l.tail = e
	}
	l.head = e
}

// PushBack inserts e at the back of the list.
// Requires that e is not currently in a list.
func (l *List[T]) PushBack(e T) {
	var zero T
	e.SetNext(zero)
	e.SetPrev(l.tail)
	if l.tail != zero {
		l.tail.SetNext(e)
	} else {
		l.head = e
	}
	l.tail = e
}

// InsertBefore inserts e immediately before ref.  A zero ref is treated as
// one past the back of the list, so the element is appended.
// Requires that e is not currently in a list and ref, if non-zero, is.
func (l *List[T]) InsertBefore(e, ref T) {
	var zero T
	if ref == zero {
		l.PushBack(e)
		return
	}
	prev := ref.Prev()
	e.SetNext(ref)
	e.SetPrev(prev)
	ref.SetPrev(e)
	if prev != zero {
		prev.SetNext(e)
	} else {
		l.head = e
	}
}

// InsertAfter inserts e immediately after ref.  A zero ref is treated as one
// before the front of the list, so the element is prepended.
// Requires that e is not currently in a list and ref, if non-zero, is.
func (l *List[T]) InsertAfter(e, ref T) {
	var zero T
	if ref == zero {
		l.PushFront(e)
		return
	}
	next := ref.Next()
	e.SetPrev(ref)
	e.SetNext(next)
	ref.SetNext(e)
	if next != zero {
		next.SetPrev(e)
	} else {
		l.tail = e
	}
}

// Remove unlinks e from the list and resets its links, so a stale element is
// observably unlinked.  Requires that e is currently in this list; removing
// an unlinked element is a programmer error and panics when detectable.
func (l *List[T]) Remove(e T) {
	var zero T
	prev, next := e.Prev(), e.Next()
	if prev == zero && next == zero && l.head != e {
		panic("ilist: Remove of element not in a list")
	}
	if prev != zero {
		prev.SetNext(next)
	} else {
		l.head = next
	}
	if next != zero {
		next.SetPrev(prev)
	} else {
		l.tail = prev
	}
	e.SetNext(zero)
	e.SetPrev(zero)
}

// RemoveFront unlinks and returns the first element of the list, or the zero
// value of T if the list is empty.
func (l *List[T]) RemoveFront() T {
	var zero T
	e := l.head
	if e == zero {
		return zero
	}
	l.Remove(e)
	return e
}

// RemoveBack unlinks and returns the last element of the list, or the zero
// value of T if the list is empty.
func (l *List[T]) RemoveBack() T {
	var zero T
	e := l.tail
	if e == zero {
		return zero
	}
	l.Remove(e)
	return e
}

// MoveToFront moves e to the front of the list, for LRU-style reordering.
// Requires that e is currently in this list.
func (l *List[T]) MoveToFront(e T) {
	if l.head == e {
		return
	}
	l.Remove(e)
	l.PushFront(e)
}

// Swap exchanges the positions of a and b, leaving the relative order of all
// other elements unchanged.  Requires that both are currently in this list.
func (l *List[T]) Swap(a, b T) {
	if a == b {
		return
	}
	// Record where each element goes relative to its neighbour, flipping to
	// the other neighbour when the two are adjacent so the reference element
	// is not the one being moved.
	aRef, aAfter := a.Next(), false
	if aRef == b {
		aRef, aAfter = a.Prev(), true
	}
	bRef, bAfter := b.Next(), false
	if bRef == a {
		bRef, bAfter = b.Prev(), true
	}
	l.Remove(a)
	l.Remove(b)
	if aAfter {
		l.InsertAfter(b, aRef)
	} else {
		l.InsertBefore(b, aRef)
	}
	if bAfter {
		l.InsertAfter(a, bRef)
	} else {
		l.InsertBefore(a, bRef)
	}
}

// Contains reports whether e is in the list.  It walks the list and is O(n);
// intended for tests and debug assertions.
func (l *List[T]) Contains(e T) bool {
	var zero T
	for it := l.head; it != zero; it = it.Next() {
		if it == e {
			return true
		}
	}
	return false
}

// Len returns the number of elements in the list.  It walks the list and is
// O(n).
func (l *List[T]) Len() int {
	var zero T
	n := 0
	for it := l.head; it != zero; it = it.Next() {
		n++
	}
	return n
}
