// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nec

// Raw codes hold the 32 transmitted bits with the first bit received in the
// least significant position: { address low, address high, cmd, ^cmd }.

// SplitRawCode breaks a raw code into address and command.
// valid is false if the command inverse does not match.
func SplitRawCode(code uint32) (valid bool, address uint16, command byte) {
	addrLow := byte(code)
	addrHigh := byte(code >> 8)
	command = byte(code >> 16)
	invCmd := byte(code >> 24)

	address = MakeAddress(addrLow, addrHigh)
	valid = command == ^invCmd
	return valid, address, command
}

// MakeRawCode assembles a raw code from an address and command
func MakeRawCode(address uint16, command byte) uint32 {
	addrLow, addrHigh := SplitAddress(address)
	return uint32(^command)<<24 | uint32(command)<<16 | uint32(addrHigh)<<8 | uint32(addrLow)
}

// SplitAddress splits an address into the two bytes sent on the wire.
// 8-bit addresses are sent with their inverse as the high byte.
func SplitAddress(address uint16) (addrLow, addrHigh byte) {
	addrLow = byte(address)
	addrHigh = byte(address >> 8)
	if addrHigh == 0 {
		addrHigh = ^addrLow
	}
	return addrLow, addrHigh
}

// MakeAddress joins the two address bytes received on the wire.
// A high byte equal to the inverse of the low byte denotes an 8-bit address;
// such values cannot be used as extended 16-bit addresses.
func MakeAddress(addrLow, addrHigh byte) uint16 {
	if addrHigh == ^addrLow {
		return uint16(addrLow)
	}
	return uint16(addrHigh)<<8 | uint16(addrLow)
}

// FieldMask returns a mask of the low width bits
func FieldMask(width uint32) uint32 {
	if width >= 32 {
		return ^uint32(0)
	}
	return 1<<width - 1
}
