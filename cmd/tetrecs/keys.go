package main

import "strings"

type binding []string

func (b binding) matches(key string) bool {
	for _, k := range b {
		if k == key {
			return true
		}
	}
	return false
}

func (b binding) help() string { return strings.Join(b, "/") }

type keyMap struct {
	up, down, left, right binding
	place                 binding
	rotateLeft            binding
	rotateRight           binding
	swap                  binding
	quit                  binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		up:          binding{"up", "w"},
		down:        binding{"down", "s"},
		left:        binding{"left", "a"},
		right:       binding{"right", "d"},
		place:       binding{"enter", "x"},
		rotateLeft:  binding{"q", "z", "["},
		rotateRight: binding{"e", "c", "]"},
		swap:        binding{" ", "r"},
		quit:        binding{"esc", "ctrl+c"},
	}
}
