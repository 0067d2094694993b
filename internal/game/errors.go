/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrInvalidRoom    = errors.New("invalid room")
	ErrGameInProgress = errors.New("game already started")
	ErrAlreadyInRoom  = errors.New("player is already in another room")
)
