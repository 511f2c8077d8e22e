// Package processors provides the built-in processor set for the five
// shipped task types. These are local reference implementations: they
// validate the documented payload shape for their type and compute
// deterministic results without calling external AI services, so a
// procq node runs end to end out of the box. Deployments that need
// real model output register their own dispatch.Processor per type and
// nothing else changes.
package processors
