// Package services implements the driving ports: index building, chat,
// corpus management, settings, watching and resource scheduling.
//
// Services depend only on driven ports. Concrete adapters are chosen by
// the command's bootstrap and passed in through constructors and the
// Runtime value.
package services
