// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package ilist provides intrusive doubly- and singly-linked lists.
//
// Both variants store a pointer to the owning value directly in the node
// rather than allocating a wrapper, matching the "never allocates" discipline
// the rest of this module relies on: every splice, append, or unlink is O(1)
// pointer surgery, and an unlinked node's own links point back to itself
// (the empty-list marker), so Unlink is safe to call twice.
package ilist

// Node is one entry in a doubly-linked circular list. An unlinked Node has
// next == prev == itself. The zero value is not ready to use; call Init.
type Node[T any] struct {
	next, prev *Node[T]
	Item       *T
}

// Init prepares n as a standalone, unlinked node.
func (n *Node[T]) Init() {
	n.next = n
	n.prev = n
}

// Linked reports whether n is currently spliced into some list.
func (n *Node[T]) Linked() bool {
	return n.next != n
}

// List is a circular doubly-linked list of Node[T], using a sentinel head
// node so that push/pop/splice never special-case the empty list.
type List[T any] struct {
	head Node[T]
}

// Init prepares an empty list. The zero value is not ready to use.
func (l *List[T]) Init() {
	l.head.next = &l.head
	l.head.prev = &l.head
}

// IsEmpty reports whether the list has no entries.
func (l *List[T]) IsEmpty() bool {
	return l.head.next == &l.head
}

func linkBetween[T any](n, before, after *Node[T]) {
	n.prev = before
	n.next = after
	before.next = n
	after.prev = n
}

// Append links n at the tail of the list.
func (l *List[T]) Append(n *Node[T]) {
	linkBetween(n, l.head.prev, &l.head)
}

// Prepend links n at the head of the list.
func (l *List[T]) Prepend(n *Node[T]) {
	linkBetween(n, &l.head, l.head.next)
}

// PutBefore links n immediately before mark, which must already be linked
// into this list.
func (l *List[T]) PutBefore(mark, n *Node[T]) {
	linkBetween(n, mark.prev, mark)
}

// PutAfter links n immediately after mark, which must already be linked
// into this list.
func (l *List[T]) PutAfter(mark, n *Node[T]) {
	linkBetween(n, mark, mark.next)
}

// Unlink removes n from whatever list it is linked into and resets it to
// the empty-list marker. Safe to call on an already-unlinked node.
func Unlink[T any](n *Node[T]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.next = n
	n.prev = n
}

// PeekFirst returns the first node, or nil if the list is empty.
func (l *List[T]) PeekFirst() *Node[T] {
	if l.IsEmpty() {
		return nil
	}
	return l.head.next
}

// PeekLast returns the last node, or nil if the list is empty.
func (l *List[T]) PeekLast() *Node[T] {
	if l.IsEmpty() {
		return nil
	}
	return l.head.prev
}

// DetachFirst unlinks and returns the first node, or nil if the list is
// empty.
func (l *List[T]) DetachFirst() *Node[T] {
	n := l.PeekFirst()
	if n != nil {
		Unlink(n)
	}
	return n
}

// ItrBegin returns the first node for forward iteration; ItrEnd reports
// whether the iteration has reached the sentinel (the list's own head node,
// the one-past-the-end marker). Advance with Next.
func (l *List[T]) ItrBegin() *Node[T] {
	return l.head.next
}

// ItrEnd reports whether n denotes the iteration boundary for l.
func (l *List[T]) ItrEnd(n *Node[T]) bool {
	return n == &l.head
}

// Next returns the next node in iteration order.
func (n *Node[T]) Next() *Node[T] {
	return n.next
}
