// Package abi describes the binary layouts objcload reads and writes: the
// compiler-emitted metadata records found in an image, and the private
// runtime-side structures the registration engine has to touch.
//
// Everything here is for the LP64 little-endian ABI (arm64, x86_64). Record
// layouts are fixed by the compiler; runtime layouts are versioned because
// they change between runtime releases.
package abi

// PtrSize is the pointer width of the supported ABI.
const PtrSize = 8

// SectionEntryDivisor is applied to the pointer count of the class-list,
// class-ref, superclass-ref and category sections to get the number of
// meaningful entries: count = (length / PtrSize) / SectionEntryDivisor.
//
// The producing toolchain emits these sections padded to twice their entry
// count. No authoritative description of that rule exists; the constant is
// kept as observed and must be re-checked against any new producer.
// Selector-ref sections are not halved.
const SectionEntryDivisor = 2

// Section names of the Objective-C metadata sections.
const (
	SectionSelRefs   = "__objc_selrefs"
	SectionClassList = "__objc_classlist"
	SectionClassRefs = "__objc_classrefs"
	SectionSuperRefs = "__objc_superrefs"
	SectionCatList   = "__objc_catlist"
)

// Segment names the metadata sections live in. Newer linkers move the
// read-only-after-fixup lists into __DATA_CONST.
const (
	SegmentData      = "__DATA"
	SegmentDataConst = "__DATA_CONST"
)

// DefaultSegments is the lookup order for metadata sections.
var DefaultSegments = []string{SegmentData, SegmentDataConst}

// ============================================================================
// class64_t
// ============================================================================
//
//	Offset  Size  Field
//	0x00    8     isa (metaclass record)
//	0x08    8     superclass (record or live class)
//	0x10    8     cache
//	0x18    8     vtable
//	0x20    8     data (class_ro64_t *, low bits are flags)
const (
	ClassISAOffset        = 0x00
	ClassSuperclassOffset = 0x08
	ClassCacheOffset      = 0x10
	ClassVTableOffset     = 0x18
	ClassDataOffset       = 0x20
	ClassSize             = 0x28

	// FastDataMask strips the flag bits stored in the low and high bits of
	// the class data word.
	FastDataMask uint64 = 0x00007ffffffffff8

	// FastIsSwift marks a Swift class in the class data word.
	FastIsSwift uint64 = 1 << 0
)

// ============================================================================
// class_ro64_t
// ============================================================================
//
//	Offset  Size  Field
//	0x00    4     flags (RO_META = 1)
//	0x04    4     instanceStart
//	0x08    4     instanceSize
//	0x0C    4     reserved
//	0x10    8     ivarLayout
//	0x18    8     name (const char *)
//	0x20    8     baseMethods (method_list_t *)
//	0x28    8     baseProtocols
//	0x30    8     ivars
//	0x38    8     weakIvarLayout
//	0x40    8     baseProperties
const (
	ROFlagsOffset          = 0x00
	ROInstanceStartOffset  = 0x04
	ROInstanceSizeOffset   = 0x08
	ROIvarLayoutOffset     = 0x10
	RONameOffset           = 0x18
	ROBaseMethodsOffset    = 0x20
	ROBaseProtocolsOffset  = 0x28
	ROIvarsOffset          = 0x30
	ROWeakIvarLayoutOffset = 0x38
	ROBasePropertiesOffset = 0x40
	ROSize                 = 0x48

	// ROMeta is set in the flags of a metaclass's read-only data.
	ROMeta uint32 = 1 << 0
	// RORoot is set for root classes.
	RORoot uint32 = 1 << 1
)

// ============================================================================
// method_list_t / method64_t
// ============================================================================
//
//	Offset  Size  Field
//	0x00    4     entsize | flags (two low bits)
//	0x04    4     count
//	0x08    ...   count * entsize bytes of method64_t
//
//	method64_t: name (SEL) @0x00, types @0x08, imp @0x10
const (
	ListEntsizeOffset = 0x00
	ListCountOffset   = 0x04
	ListHeaderSize    = 0x08

	// MethodListFlagMask covers the fixup marker bits kept in entsize.
	MethodListFlagMask uint32 = 0x3

	MethodNameOffset  = 0x00
	MethodTypesOffset = 0x08
	MethodIMPOffset   = 0x10
	MethodSize        = 0x18
)

// ============================================================================
// category_t
// ============================================================================
//
//	Offset  Size  Field
//	0x00    8     name
//	0x08    8     cls
//	0x10    8     instanceMethods
//	0x18    8     classMethods
//	0x20    8     protocols
//	0x28    8     instanceProperties
const (
	CategoryNameOffset               = 0x00
	CategoryClassOffset              = 0x08
	CategoryInstanceMethodsOffset    = 0x10
	CategoryClassMethodsOffset       = 0x18
	CategoryProtocolsOffset          = 0x20
	CategoryInstancePropertiesOffset = 0x28
	CategorySize                     = 0x30
)

// Sanity limits applied while decoding untrusted records.
const (
	// MaxNameLen bounds class, category and selector name strings.
	MaxNameLen = 4096
	// MaxMethodCount bounds a single method list.
	MaxMethodCount = 1 << 16
)
