// Package eeprom emulates a byte-addressable, power-loss-durable
// key-value store on top of raw, page-erasable Flash memory.
//
// Flash can only be written in 16-bit half-words, can only clear bits
// (1->0) without an intervening page erase, and must be erased a
// whole page at a time. This package implements the log-structured,
// page-rotating format used to emulate an EEPROM on top of those
// constraints: a small number of 16-bit values, each addressed by a
// 16-bit tag, survive power loss at any point during a write.
//
// # References
//
//   - [idubrov/eeprom]: the original STM32 EEPROM emulation crate this
//     package's on-Flash format is compatible with.
//
// [idubrov/eeprom]: https://github.com/idubrov/eeprom
package eeprom
