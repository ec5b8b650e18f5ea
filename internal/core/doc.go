// Package core converts delimited text into XLSX workbooks.
//
// It is independent of any transport: the HTTP server and the command line
// tool both call into it.
//
// # Conversion
//
// [Convert] reads an io.Reader line by line. Each physical line becomes one
// row of a single sheet named "Data":
//
//  1. The input is decoded to UTF-8 (BOM skipped, legacy charsets via
//     x/text) and split on "\n", "\r\n" or a lone "\r".
//  2. Each line is split into fields by csvline.
//  3. Each field is trimmed and typed by cell.Infer.
//  4. The finished workbook is handed to an xlsx.Encoder.
//
// Conversions share no state; concurrent calls are safe.
//
// # Service
//
// [Service] adds what a server needs around a conversion: default options,
// a [ConversionLimiter] bounding parallel work, storage of outputs for later
// download, conversion history, and a cleanup job for uncollected files.
//
// # Error Handling
//
// Input problems surface as *[ReadError], encoder failures as
// *xlsx.EncodingError. [MapError] turns any error into a [UserMessage] with
// a support code (READ*, ENC*, FILE*, STO*, UPL*, RATE001, ERR000).
package core
