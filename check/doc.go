// Package check contains the verification stages. Each stage implements
// the Stage interface and runs against a State shared by one verification
// run only. Stages are composed in a fixed order by the mailverify
// package; they can also be used on their own.
package check
