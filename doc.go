/*
Package ddns keeps the Porkbun "A" records of a domain pointed at the current public IPv4 address.

Usage will always start with [ddns.New],
which returns the DDNSClient implementation.
New requires the domain to reconcile and a [Provider], normally [UsingPorkbun].
Each call to RunDDNS resolves the public address,
retrieves the domain's address records,
and edits only the records whose content differs.
Use a [Daemon] to repeat that on an interval.
*/
package ddns
