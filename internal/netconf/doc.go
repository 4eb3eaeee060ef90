// Package netconf is the kernel networking layer of enisyncd.
//
// It wraps the rtnetlink surface behind the Netlinker interface, provides
// typed builders for the objects the daemon manages (interface addresses,
// per-table default routes, source policy rules), an all-or-nothing kernel
// state reader, and the event watcher that turns asynchronous link/address
// notifications into reconciliation triggers.
package netconf
