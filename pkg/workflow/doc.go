// Package workflow drives the interactive flows: fetch and cache, publish
// only, fetch and publish, and resuming cached items at startup.
//
// Input validation loops live here and talk to a Prompter, so the flows
// run unchanged against the console or a scripted test prompter.
package workflow
